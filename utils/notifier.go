package utils

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edulearn/rewards/rewards"
)

const notifyTimeout = 2 * time.Second

// RedisNotifier publishes "reward granted" messages on a Redis channel for the UI gateway.
// Publishing happens in the background; a lost notification never affects the reward itself.
type RedisNotifier struct {
	rc      *redis.Client
	channel string
	wg      sync.WaitGroup
}

func NewRedisNotifier(rc *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{rc: rc, channel: channel}
}

// Notify implements rewards.Notifier.
func (n *RedisNotifier) Notify(_ context.Context, msg rewards.Notification) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		// detached from the request context, which is usually done by the time this runs
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.rc.Publish(ctx, n.channel, payload).Err(); err != nil && Sugar != nil {
			Sugar.Warnf("notify publish failed channel=%s user=%d kind=%s err=%v", n.channel, msg.UserID, msg.Kind, err)
		}
	}()
}

// Close waits for in-flight publishes.
func (n *RedisNotifier) Close() {
	n.wg.Wait()
}
