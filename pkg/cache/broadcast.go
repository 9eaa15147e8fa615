package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lexcabinet/cabinet-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultInvalidationChannel Redis pub/sub channel shared by all instances
const DefaultInvalidationChannel = "content:invalidate"

const publishTimeout = 2 * time.Second

type invalidationMessage struct {
	Origin     string `json:"origin"`
	Locale     string `json:"locale,omitempty"`
	Key        string `json:"key"`
	AllLocales bool   `json:"all_locales,omitempty"`
}

// Broadcaster wraps a local cache and fans every invalidation out to the other
// instances through Redis pub/sub. Local eviction happens first and never
// depends on Redis being reachable.
type Broadcaster struct {
	local   *ContentCache
	rdb     *redis.Client
	channel string
	origin  string
}

// NewBroadcaster creates a Broadcaster; an empty channel uses DefaultInvalidationChannel
func NewBroadcaster(local *ContentCache, rdb *redis.Client, channel string) *Broadcaster {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &Broadcaster{
		local:   local,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.New().String(),
	}
}

// Origin identifies this instance in published messages
func (b *Broadcaster) Origin() string {
	return b.origin
}

func (b *Broadcaster) Get(locale, key string) (string, uint64, bool) {
	return b.local.Get(locale, key)
}

func (b *Broadcaster) PutIfFresh(locale, key, value string, gen uint64) bool {
	return b.local.PutIfFresh(locale, key, value, gen)
}

func (b *Broadcaster) Invalidate(locale, key string) {
	b.local.Invalidate(locale, key)
	b.publish(invalidationMessage{Origin: b.origin, Locale: locale, Key: key})
}

func (b *Broadcaster) InvalidateAllLocales(key string) {
	b.local.InvalidateAllLocales(key)
	b.publish(invalidationMessage{Origin: b.origin, Key: key, AllLocales: true})
}

func (b *Broadcaster) publish(msg invalidationMessage) {
	if b.rdb == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		broadcastErrors.Inc()
		logger.GetLogger().Warn().Err(err).
			Str("key", msg.Key).
			Str("locale", msg.Locale).
			Msg("cache invalidation broadcast failed")
	}
}

// Run subscribes to the channel and applies invalidations from other instances.
// It blocks until ctx is cancelled and should run in its own goroutine.
func (b *Broadcaster) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.apply(msg.Payload)
		}
	}
}

func (b *Broadcaster) apply(payload string) {
	var msg invalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		logger.GetLogger().Debug().Err(err).Msg("ignoring malformed invalidation message")
		return
	}
	if msg.Origin == b.origin || msg.Key == "" {
		return
	}
	if msg.AllLocales {
		b.local.InvalidateAllLocales(msg.Key)
		return
	}
	b.local.Invalidate(msg.Locale, msg.Key)
}
