package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/infrastructure/cache"
)

// Connect initializes a Redis client from URL or host:port input.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisBus publishes invalidations on a pub/sub channel and applies the
// ones other instances publish to the local store.
type RedisBus struct {
	client  *redis.Client
	channel string
	origin  string
	store   *cache.Store
	logger  *zap.Logger
}

// NewRedisBus creates a bus with a fresh origin id.
func NewRedisBus(client *redis.Client, channel string, store *cache.Store, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		store:   store,
		logger:  logger.Named("invalidation"),
	}
}

// Origin identifies this instance's messages.
func (b *RedisBus) Origin() string { return b.origin }

// Publish broadcasts inv, stamped with this instance's origin.
func (b *RedisBus) Publish(ctx context.Context, inv Invalidation) error {
	inv.Origin = b.origin
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Run subscribes and applies remote invalidations until ctx ends.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("Listening for cache invalidations", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload)
		}
	}
}

// handle reports whether payload was applied.
func (b *RedisBus) handle(payload string) bool {
	var inv Invalidation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		b.logger.Warn("Dropping malformed invalidation", zap.Error(err))
		return false
	}
	if inv.Origin == b.origin {
		return false
	}
	removed := Apply(b.store, inv)
	b.logger.Info("Applied remote invalidation",
		zap.String("origin", inv.Origin),
		zap.String("namespace", inv.Namespace),
		zap.String("pattern", inv.Pattern),
		zap.Int("removed", removed),
	)
	return true
}

// Close closes the Redis client.
func (b *RedisBus) Close() error { return b.client.Close() }
