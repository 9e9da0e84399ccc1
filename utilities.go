package toast

import (
	"strconv"
	"strings"
)

// returnRangeInt32 converts a string like 0-4,6-7 to [0,1,2,3,4,6,7]. Ids
// outside [0, max) and repeats are dropped. With more than one node only the
// ids where id % nodeCount == nodeID are kept.
func returnRangeInt32(nodeCount, nodeID int32, rangeString string, max int32) (result []int32) {
	seen := make(map[int32]struct{})

	for _, split := range strings.Split(rangeString, ",") {
		ranges := strings.Split(strings.TrimSpace(split), "-")

		low, err := strconv.Atoi(strings.TrimSpace(ranges[0]))
		if err != nil {
			continue
		}

		hi, err := strconv.Atoi(strings.TrimSpace(ranges[len(ranges)-1]))
		if err != nil {
			continue
		}

		for i := int32(low); i < int32(hi+1); i++ {
			if i < 0 || i >= max {
				continue
			}

			if nodeCount > 1 && i%nodeCount != nodeID {
				continue
			}

			if _, ok := seen[i]; ok {
				continue
			}

			seen[i] = struct{}{}
			result = append(result, i)
		}
	}

	return result
}
