package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tindapos/backend/internal/domain"
)

type RedisReceiptCache struct {
	client *redis.Client
}

func NewRedisReceiptCache(addr string, password string, db int) *RedisReceiptCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReceiptCache{client: client}
}

func (c *RedisReceiptCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReceiptCache) Close() error {
	return c.client.Close()
}

func (c *RedisReceiptCache) Get(ctx context.Context, receiptNum string) (*domain.Transaction, bool, error) {
	val, err := c.client.Get(ctx, receiptKey(receiptNum)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var tx domain.Transaction
	if err := json.Unmarshal([]byte(val), &tx); err != nil {
		return nil, false, err
	}
	return &tx, true, nil
}

func (c *RedisReceiptCache) Set(ctx context.Context, receiptNum string, tx *domain.Transaction, ttl time.Duration) error {
	if tx == nil {
		return nil
	}
	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, receiptKey(receiptNum), payload, ttl).Err()
}

func (c *RedisReceiptCache) Invalidate(ctx context.Context, receiptNum string) error {
	return c.client.Del(ctx, receiptKey(receiptNum)).Err()
}

func receiptKey(receiptNum string) string {
	return "receipt:" + receiptNum
}
