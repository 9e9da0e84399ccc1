package toast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMQClient struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
	err      error
	closed   bool
}

func (c *fakeMQClient) String() string  { return "fake" }
func (c *fakeMQClient) Channel() string { return "" }

func (c *fakeMQClient) Connect(context.Context, string, map[string]any) error {
	return nil
}

func (c *fakeMQClient) Publish(_ context.Context, channelName string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	c.channels = append(c.channels, channelName)
	c.messages = append(c.messages, data)

	return nil
}

func (c *fakeMQClient) Close() error {
	c.closed = true

	return nil
}

func TestProducerPublishesDispatches(t *testing.T) {
	client := &fakeMQClient{}
	bus := NewEventBus()

	producer := NewProducer(zerolog.Nop(), client, "toast", func() int32 { return 4 }, []string{"TYPING_START"})
	producer.Attach(bus)

	sequence := int64(12)

	bus.Emit(Event{Type: EventDispatch, ShardID: 2, Payload: &discord.GatewayPayload{
		Type:     "MESSAGE_CREATE",
		Sequence: &sequence,
		Data:     []byte(`{"content":"hi"}`),
	}})
	bus.Emit(Event{Type: EventDispatch, ShardID: 2, Payload: &discord.GatewayPayload{Type: "TYPING_START", Data: []byte(`{}`)}})

	require.NoError(t, producer.Close())
	assert.True(t, client.closed)

	require.Len(t, client.messages, 1)
	assert.Equal(t, "toast", client.channels[0])

	var produced ProducedPayload

	require.NoError(t, toastjson.Unmarshal(client.messages[0], &produced))

	assert.Equal(t, int32(2), produced.ShardID)
	assert.Equal(t, int32(4), produced.ShardCount)
	assert.Equal(t, "MESSAGE_CREATE", produced.Type)
	assert.Equal(t, int64(12), *produced.Sequence)
	assert.JSONEq(t, `{"content":"hi"}`, string(produced.Data))

	published, failed := producer.Counts()
	assert.Equal(t, int64(1), published)
	assert.Zero(t, failed)
}

func TestProducerCountsFailures(t *testing.T) {
	client := &fakeMQClient{err: errors.New("broker down")}
	bus := NewEventBus()

	producer := NewProducer(zerolog.Nop(), client, "toast", func() int32 { return 1 }, nil)
	producer.Attach(bus)

	bus.Emit(Event{Type: EventDispatch, Payload: &discord.GatewayPayload{Type: "MESSAGE_CREATE", Data: []byte(`{}`)}})

	require.NoError(t, producer.Close())

	_, failed := producer.Counts()
	assert.Equal(t, int64(1), failed)
}

type slowMQClient struct {
	fakeMQClient
	release chan struct{}
}

func (c *slowMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	<-c.release

	return c.fakeMQClient.Publish(ctx, channelName, data)
}

func TestProducerDoesNotBlockEmit(t *testing.T) {
	client := &slowMQClient{release: make(chan struct{})}
	bus := NewEventBus()

	producer := NewProducer(zerolog.Nop(), client, "toast", func() int32 { return 1 }, nil)
	producer.Attach(bus)

	emitted := make(chan struct{})

	go func() {
		for i := 0; i < 10; i++ {
			bus.Emit(Event{Type: EventDispatch, Payload: &discord.GatewayPayload{Type: "MESSAGE_CREATE", Data: []byte(`{}`)}})
		}

		close(emitted)
	}()

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a slow broker")
	}

	close(client.release)

	require.NoError(t, producer.Close())

	published, failed := producer.Counts()
	assert.Equal(t, int64(10), published)
	assert.Zero(t, failed)
	assert.Len(t, client.messages, 10)
}
