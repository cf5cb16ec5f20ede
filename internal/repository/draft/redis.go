package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/debemdeboas/composer/internal/model"
)

// RedisStore keeps each slot under draft:<id>:<slot>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStoreFromURL(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStore(client), nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "draft:",
	}
}

func (s *RedisStore) key(id model.DraftID, slot Slot) string {
	return s.prefix + string(id) + ":" + string(slot)
}

var redisSlots = []Slot{SlotTitle, SlotBodyHTML, SlotBodyJSON}

func (s *RedisStore) Load(ctx context.Context, id model.DraftID) (model.Draft, bool, error) {
	keys := make([]string, len(redisSlots))
	for i, slot := range redisSlots {
		keys[i] = s.key(id, slot)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return model.Draft{}, false, persistErr("load", id, err)
	}

	var sl slots
	for i, v := range values {
		if str, ok := v.(string); ok {
			sl.set(redisSlots[i], []byte(str))
		}
	}

	d, found := sl.draft(id)
	return d, found, nil
}

// Save writes the patch in one MULTI/EXEC so body HTML and JSON land together.
func (s *RedisStore) Save(ctx context.Context, id model.DraftID, patch Patch) error {
	if patch.Empty() {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for slot, value := range patch.values() {
			pipe.Set(ctx, s.key(id, slot), value, 0)
		}
		return nil
	})
	return persistErr("save", id, err)
}

func (s *RedisStore) Clear(ctx context.Context, id model.DraftID) error {
	keys := make([]string, len(redisSlots))
	for i, slot := range redisSlots {
		keys[i] = s.key(id, slot)
	}
	return persistErr("clear", id, s.client.Del(ctx, keys...).Err())
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
