package toast

import (
	"reflect"
	"testing"
)

func TestReturnRangeInt32(t *testing.T) {
	rangeString := "0-4,6-7"
	max := int32(8)
	expected := []int32{0, 1, 2, 3, 4, 6, 7}

	result := returnRangeInt32(0, 0, rangeString, max)

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %v, but got %v", expected, result)
	}
}

func TestReturnRangeInt32Single(t *testing.T) {
	rangeString := "0"
	max := int32(8)
	expected := []int32{0}

	result := returnRangeInt32(0, 0, rangeString, max)

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %v, but got %v", expected, result)
	}
}

func TestReturnRangeInt32Empty(t *testing.T) {
	result := returnRangeInt32(0, 0, "", 8)

	if len(result) != 0 {
		t.Errorf("Expected no ids, but got %v", result)
	}
}

func TestReturnRangeInt32Invalid(t *testing.T) {
	rangeString := "0-4,6-7,8,x"
	max := int32(8)
	expected := []int32{0, 1, 2, 3, 4, 6, 7}

	result := returnRangeInt32(0, 0, rangeString, max)

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %v, but got %v", expected, result)
	}
}

func TestReturnRangeInt32Duplicates(t *testing.T) {
	expected := []int32{0, 1, 2, 3}

	result := returnRangeInt32(0, 0, "0-2, 1-3", 8)

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %v, but got %v", expected, result)
	}
}

func TestReturnRangeInt32Node(t *testing.T) {
	expected := []int32{1, 4, 7}

	result := returnRangeInt32(3, 1, "0-7", 8)

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %v, but got %v", expected, result)
	}
}
