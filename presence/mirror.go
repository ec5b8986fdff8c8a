package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

const mirrorKeyPrefix = "presence:online:"

// RedisMirror copies this node's online set into a Redis set so other nodes
// and admin tooling can read it. The in-memory Registry stays authoritative.
type RedisMirror struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
}

func NewRedisMirror(client redis.UniversalClient, node string, timeout time.Duration) *RedisMirror {
	return &RedisMirror{
		client:  client,
		key:     mirrorKeyPrefix + node,
		timeout: timeout,
	}
}

// Observe replaces the mirrored set with online. It is a registry Observer.
func (m *RedisMirror) Observe(online []uint) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	members := make([]any, 0, len(online))
	for _, user := range online {
		members = append(members, strconv.FormatUint(uint64(user), 10))
	}

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.key)
		if len(members) > 0 {
			pipe.SAdd(ctx, m.key, members...)
		}
		return nil
	})
	if err != nil {
		glog.Warningf("presence: mirror %d online users to redis: %v", len(online), err)
	}
}

// Clear removes the mirrored set, used on shutdown.
func (m *RedisMirror) Clear(ctx context.Context) error {
	return m.client.Del(ctx, m.key).Err()
}

// Online reads the online users mirrored by every node.
func Online(ctx context.Context, client redis.UniversalClient) ([]uint, error) {
	keys := []string{}
	iter := client.Scan(ctx, 0, mirrorKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []uint{}, nil
	}

	members, err := client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]uint, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		users = append(users, uint(id))
	}
	return users, nil
}
