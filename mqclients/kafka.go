package mqclients

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

func init() {
	register("kafka", func() MQClient { return &KafkaMQClient{} })
}

type KafkaMQClient struct {
	writer *kafka.Writer

	channel string
}

func parseKafkaBalancer(balancer string) kafka.Balancer {
	switch balancer {
	case "crc32":
		return &kafka.CRC32Balancer{}
	case "hash":
		return &kafka.Hash{}
	case "murmur2":
		return &kafka.Murmur2Balancer{}
	case "roundrobin":
		return &kafka.RoundRobin{}
	case "leastbytes":
		return &kafka.LeastBytes{}
	default:
		return nil
	}
}

func (kafkaMQ *KafkaMQClient) String() string {
	return "kafka"
}

func (kafkaMQ *KafkaMQClient) Channel() string {
	return kafkaMQ.channel
}

func (kafkaMQ *KafkaMQClient) Connect(_ context.Context, _ string, args map[string]any) error {
	address, ok := stringEntry(args, "Address")
	if !ok {
		return errors.New("kafkaMQ connect: string type assertion failed for Address")
	}

	balancer, _ := stringEntry(args, "Balancer")
	async, _ := stringEntry(args, "Async")

	kafkaMQ.channel, _ = stringEntry(args, "Channel")

	kafkaMQ.writer = &kafka.Writer{
		Addr:     kafka.TCP(address),
		Balancer: parseKafkaBalancer(balancer),
		Async:    mustParseBool(async),
	}

	return nil
}

// Publish writes to the topic named channelName.
func (kafkaMQ *KafkaMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	err := kafkaMQ.writer.WriteMessages(ctx, kafka.Message{
		Topic: channelName,
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafkaMQ publish: %w", err)
	}

	return nil
}

func (kafkaMQ *KafkaMQClient) Close() error {
	if kafkaMQ.writer == nil {
		return nil
	}

	return kafkaMQ.writer.Close()
}
