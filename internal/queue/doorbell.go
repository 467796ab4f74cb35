// Package queue provides a low-latency wake signal between the Scheduler
// and the Runner Pool. The durable queue state lives in Postgres
// (internal/store's run_queue table with conditional-update leases); this
// Redis-backed doorbell only shortens the delay before an idle worker
// notices new work.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrTimeout = errors.New("doorbell timeout")

type Ring struct {
	client    *redis.Client
	queueName string
}

func NewRing(redisURL string) (*Ring, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	return &Ring{client: redis.NewClient(opt), queueName: "e2emon:due"}, nil
}

func (r *Ring) Close() error {
	return r.client.Close()
}

type DueNotice struct {
	TestID    uuid.UUID `json:"test_id"`
	DueTS     time.Time `json:"due_ts"`
	CreatedAt time.Time `json:"created_at"`
}

// Ring pushes a notice with the due time as score so a blocking pop returns
// the earliest-due item first, matching the durable queue's FIFO-by-due_ts
// ordering guarantee.
func (r *Ring) Notify(ctx context.Context, testID uuid.UUID, dueTS time.Time) error {
	n := DueNotice{TestID: testID, DueTS: dueTS, CreatedAt: time.Now()}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	return r.client.ZAdd(ctx, r.queueName, redis.Z{
		Score:  float64(dueTS.Unix()),
		Member: data,
	}).Err()
}

func (r *Ring) Wait(ctx context.Context, timeout time.Duration) (*DueNotice, error) {
	res, err := r.client.BZPopMin(ctx, timeout, r.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("wait for notice: %w", err)
	}
	member, ok := res.Member.(string)
	if !ok {
		return nil, errors.New("malformed doorbell entry")
	}
	var n DueNotice
	if err := json.Unmarshal([]byte(member), &n); err != nil {
		return nil, fmt.Errorf("unmarshal notice: %w", err)
	}
	return &n, nil
}

func (r *Ring) Depth(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, r.queueName).Result()
}
