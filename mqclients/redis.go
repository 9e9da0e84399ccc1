package mqclients

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

func init() {
	register("redis", func() MQClient { return &RedisMQClient{} })
}

type RedisMQClient struct {
	redisClient *redis.Client

	channel string
}

func (redisMQ *RedisMQClient) String() string {
	return "redis"
}

func (redisMQ *RedisMQClient) Channel() string {
	return redisMQ.channel
}

func (redisMQ *RedisMQClient) Connect(ctx context.Context, clientName string, args map[string]any) error {
	options, err := redisOptions(clientName, args)
	if err != nil {
		return err
	}

	redisMQ.channel, _ = stringEntry(args, "Channel")
	redisMQ.redisClient = redis.NewClient(options)

	if err := redisMQ.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisMQ connect ping: %w", err)
	}

	return nil
}

// redisOptions builds the client options. v8 has no client name option so
// every new connection names itself with CLIENT SETNAME.
func redisOptions(clientName string, args map[string]any) (*redis.Options, error) {
	address, ok := stringEntry(args, "Address")
	if !ok {
		return nil, errors.New("redisMQ connect: string type assertion failed for Address")
	}

	password, _ := stringEntry(args, "Password")

	var db int

	if dbStr, ok := stringEntry(args, "DB"); ok && dbStr != "" {
		var err error

		db, err = strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("redisMQ connect db atoi: %w", err)
		}
	}

	options := &redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}

	if clientName != "" {
		options.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
			return cn.ClientSetName(ctx, clientName).Err()
		}
	}

	return options, nil
}

func (redisMQ *RedisMQClient) Publish(ctx context.Context, channelName string, data []byte) error {
	if err := redisMQ.redisClient.Publish(ctx, channelName, data).Err(); err != nil {
		return fmt.Errorf("redisMQ publish: %w", err)
	}

	return nil
}

func (redisMQ *RedisMQClient) Close() error {
	if redisMQ.redisClient == nil {
		return nil
	}

	return redisMQ.redisClient.Close()
}
