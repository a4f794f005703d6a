package leader

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// leaderKey holds the instance ID of the worker currently allowed to run
// settlement cycles.
const leaderKey = "settlement_leader"

// The check-and-act scripts run atomically so one instance can never release
// or extend another instance's leadership.
const (
	releaseScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `
	extendScript = `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("EXPIRE", KEYS[1], ARGV[2])
        else
            return 0
        end
    `
)

// RedisLeaderElection elects a single settlement worker per store via a Redis
// key with a TTL. A worker that wins the key keeps it alive with a heartbeat;
// if the worker dies the key expires and another instance takes over.
type RedisLeaderElection struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLeaderElection(client *redis.Client, ttl time.Duration) *RedisLeaderElection {
	return &RedisLeaderElection{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisLeaderElection) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	won, err := r.client.SetNX(ctx, leaderKey, instanceID, r.ttl).Result()
	if err != nil {
		return false, err
	}

	if won {
		go r.maintainLeadership(instanceID)
	}

	return won, nil
}

func (r *RedisLeaderElection) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	currentLeader, err := r.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}

	return currentLeader == instanceID, nil
}

func (r *RedisLeaderElection) ReleaseLeadership(ctx context.Context, instanceID string) error {
	_, err := r.client.Eval(ctx, releaseScript, []string{leaderKey}, instanceID).Result()
	return err
}

// maintainLeadership extends the key's TTL at a third of its lifetime until
// the extension fails or the key belongs to someone else.
func (r *RedisLeaderElection) maintainLeadership(instanceID string) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		result, err := r.client.Eval(ctx, extendScript, []string{leaderKey},
			instanceID, int(r.ttl.Seconds())).Result()
		cancel()

		if err != nil || result.(int64) == 0 {
			return
		}
	}
}
