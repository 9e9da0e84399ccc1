package toast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/WelcomerTeam/RealRock/bucketstore"
)

// IdentifyViaBuckets is a bare minimum identify provider that uses buckets to identify shards.
// This will work for most use cases, but it's not the most efficient way to identify shards when dealing with multiple processes.
type IdentifyViaBuckets struct {
	bucketStore *bucketstore.BucketStore
}

func NewIdentifyViaBuckets() *IdentifyViaBuckets {
	return &IdentifyViaBuckets{
		bucketStore: bucketstore.NewBucketStore(),
	}
}

func (i *IdentifyViaBuckets) Identify(ctx context.Context, request IdentifyRequest) error {
	maxConcurrency := request.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	method := sha256.New()
	method.Write([]byte(request.Token))
	tokenHash := hex.EncodeToString(method.Sum(nil))

	bucketName := fmt.Sprintf(
		"identify:%s:%d",
		tokenHash,
		request.ShardID%maxConcurrency,
	)

	done := make(chan error, 1)

	// One identify per IdentifyRateLimit for each concurrency slot.
	go func() {
		done <- i.bucketStore.CreateWaitForBucket(bucketName, 1, IdentifyRateLimit)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to wait for bucket: %w", err)
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
