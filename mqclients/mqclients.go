package mqclients

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownMQClient = errors.New("unknown mq client")

// MQClient publishes produced events to a message queue.
type MQClient interface {
	String() string
	Channel() string

	Connect(ctx context.Context, clientName string, args map[string]any) error
	Publish(ctx context.Context, channelName string, data []byte) error
	Close() error
}

var mqClients = map[string]func() MQClient{}

func register(name string, factory func() MQClient) {
	mqClients[name] = factory
}

// MQClients lists the registered mq client names.
func MQClients() []string {
	names := make([]string, 0, len(mqClients))
	for name := range mqClients {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func NewMQClient(mqType string) (MQClient, error) {
	factory, ok := mqClients[strings.ToLower(mqType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMQClient, mqType)
	}

	return factory(), nil
}

// GetEntry returns the first value matching key, ignoring case.
func GetEntry(m map[string]any, key string) any {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}

	return nil
}

func stringEntry(m map[string]any, key string) (string, bool) {
	value, ok := GetEntry(m, key).(string)

	return value, ok
}
