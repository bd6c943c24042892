// AngelaMos | 2026
// broker.go

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker moves jobs between producers and the worker pool.
type Broker interface {
	Push(ctx context.Context, job *Job) error
	PushDelayed(ctx context.Context, job *Job, at time.Time) error
	// Pop blocks up to timeout for a job from the first non-empty queue in
	// order. It returns nil, nil when nothing arrived.
	Pop(ctx context.Context, queues []string, timeout time.Duration) (*Job, error)
	// PromoteDue moves delayed jobs whose time has come onto their queues.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	Bury(ctx context.Context, job *Job) error
	// ClaimUnique reports whether key was free and is now held for ttl.
	ClaimUnique(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// ReleaseUnique frees a key taken by ClaimUnique.
	ReleaseUnique(ctx context.Context, key string) error
	Stats(ctx context.Context) (*Stats, error)
}

type Stats struct {
	Queues  map[string]int64 `json:"queues"`
	Delayed int64            `json:"delayed"`
	Dead    int64            `json:"dead"`
}

const (
	maxDeadJobs  = 1000
	promoteBatch = 100
)

// promoteScript pops due members off the delayed set and pushes each onto
// its own queue in one round trip.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, raw in ipairs(due) do
	redis.call('ZREM', KEYS[1], raw)
	local job = cjson.decode(raw)
	redis.call('LPUSH', ARGV[3] .. job.queue, raw)
end
return #due
`)

type RedisBroker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBroker(rdb *redis.Client, keyPrefix string) *RedisBroker {
	return &RedisBroker{rdb: rdb, prefix: keyPrefix}
}

func (b *RedisBroker) queueKey(name string) string { return b.prefix + "queue:" + name }
func (b *RedisBroker) delayedKey() string         { return b.prefix + "delayed" }
func (b *RedisBroker) deadKey() string            { return b.prefix + "dead" }
func (b *RedisBroker) uniqueKey(k string) string  { return b.prefix + "unique:" + k }

func transportErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransportUnavailable, err)
}

func (b *RedisBroker) Push(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	if err := b.rdb.LPush(ctx, b.queueKey(job.Queue), raw).Err(); err != nil {
		return transportErr("push job", err)
	}
	return nil
}

func (b *RedisBroker) PushDelayed(ctx context.Context, job *Job, at time.Time) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	err = b.rdb.ZAdd(ctx, b.delayedKey(), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: raw,
	}).Err()
	if err != nil {
		return transportErr("schedule job", err)
	}
	return nil
}

func (b *RedisBroker) Pop(ctx context.Context, queues []string, timeout time.Duration) (*Job, error) {
	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = b.queueKey(q)
	}

	res, err := b.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, transportErr("pop job", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job from %s: %w", res[0], err)
	}
	return &job, nil
}

func (b *RedisBroker) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	n, err := promoteScript.Run(ctx, b.rdb,
		[]string{b.delayedKey()},
		strconv.FormatInt(now.UnixMilli(), 10),
		promoteBatch,
		b.prefix+"queue:",
	).Int()
	if err != nil {
		return 0, transportErr("promote delayed jobs", err)
	}
	return n, nil
}

func (b *RedisBroker) Bury(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.LPush(ctx, b.deadKey(), raw)
	pipe.LTrim(ctx, b.deadKey(), 0, maxDeadJobs-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return transportErr("bury job", err)
	}
	return nil
}

func (b *RedisBroker) ClaimUnique(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := b.rdb.SetNX(ctx, b.uniqueKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, transportErr("claim unique key", err)
	}
	return ok, nil
}

func (b *RedisBroker) ReleaseUnique(ctx context.Context, key string) error {
	if err := b.rdb.Del(ctx, b.uniqueKey(key)).Err(); err != nil {
		return transportErr("release unique key", err)
	}
	return nil
}

func (b *RedisBroker) Stats(ctx context.Context) (*Stats, error) {
	pipe := b.rdb.Pipeline()
	lens := make(map[string]*redis.IntCmd, len(Queues))
	for _, q := range Queues {
		lens[q] = pipe.LLen(ctx, b.queueKey(q))
	}
	delayed := pipe.ZCard(ctx, b.delayedKey())
	dead := pipe.LLen(ctx, b.deadKey())

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, transportErr("queue stats", err)
	}

	stats := &Stats{Queues: make(map[string]int64, len(Queues))}
	for q, cmd := range lens {
		stats.Queues[q] = cmd.Val()
	}
	stats.Delayed = delayed.Val()
	stats.Dead = dead.Val()
	return stats, nil
}
