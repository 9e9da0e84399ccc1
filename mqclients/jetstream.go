package mqclients

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func init() {
	register("jetstream", func() MQClient { return &JetStreamMQClient{} })
}

// JetStreamMQClient publishes to <channel>.<subject> on a memory stream
// named after the channel.
type JetStreamMQClient struct {
	conn   *nats.Conn
	client jetstream.JetStream
	stream jetstream.Stream

	channel string
}

func (jetstreamMQ *JetStreamMQClient) String() string {
	return "jetstream"
}

func (jetstreamMQ *JetStreamMQClient) Channel() string {
	return jetstreamMQ.channel
}

func (jetstreamMQ *JetStreamMQClient) Connect(ctx context.Context, clientName string, args map[string]any) error {
	address, ok := stringEntry(args, "Address")
	if !ok {
		return errors.New("jetstreamMQ connect: string type assertion failed for Address")
	}

	channel, ok := stringEntry(args, "Channel")
	if !ok {
		return errors.New("jetstreamMQ connect: string type assertion failed for Channel")
	}

	jetstreamMQ.channel = channel

	var err error

	jetstreamMQ.conn, err = nats.Connect(address, nats.Name(clientName))
	if err != nil {
		return fmt.Errorf("jetstreamMQ connect nats: %w", err)
	}

	jetstreamMQ.client, err = jetstream.New(jetstreamMQ.conn)
	if err != nil {
		return fmt.Errorf("jetstreamMQ new: %w", err)
	}

	retention := jetstream.WorkQueuePolicy

	if interest, _ := stringEntry(args, "InterestPolicy"); mustParseBool(interest) {
		retention = jetstream.InterestPolicy
	}

	jetstreamMQ.stream, err = jetstreamMQ.client.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:              jetstreamMQ.channel,
		Subjects:          []string{jetstreamMQ.channel + ".*"},
		Retention:         retention,
		Discard:           jetstream.DiscardOld,
		MaxAge:            5 * time.Minute,
		Storage:           jetstream.MemoryStorage,
		MaxMsgsPerSubject: 1_000_000,
		MaxMsgSize:        math.MaxInt32,
	})
	if err != nil {
		return fmt.Errorf("jetstreamMQ create stream: %w", err)
	}

	return nil
}

func mustParseBool(str string) bool {
	boolean, _ := strconv.ParseBool(str)

	return boolean
}

func (jetstreamMQ *JetStreamMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	if _, err := jetstreamMQ.client.Publish(ctx, jetstreamMQ.channel+"."+channelName, data); err != nil {
		return fmt.Errorf("jetstreamMQ publish: %w", err)
	}

	return nil
}

func (jetstreamMQ *JetStreamMQClient) Close() error {
	if jetstreamMQ.conn == nil {
		return nil
	}

	if err := jetstreamMQ.conn.Drain(); err != nil {
		return fmt.Errorf("jetstreamMQ drain: %w", err)
	}

	return nil
}
