package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Bus struct {
	rdb     *redis.Client
	log     *zap.Logger
	ctx     context.Context
	wsHub   WSHub
	streams *Streams
}

type WSHub interface {
	Publish(channel string, message map[string]interface{})
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{
		rdb:     rdb,
		log:     log,
		ctx:     context.Background(),
		streams: NewStreams(rdb, log),
	}
}

// SetWSHub sets the WebSocket hub for event broadcasting
func (b *Bus) SetWSHub(hub WSHub) {
	b.wsHub = hub
}

// GetStreams returns the event-history provider
func (b *Bus) GetStreams() *Streams {
	return b.streams
}

// PublishApplication publishes an event to an application's channel
func (b *Bus) PublishApplication(applicationID string, event map[string]interface{}) error {
	return b.Publish("application:"+applicationID, event)
}

// PublishUser publishes an event to a user's channel
func (b *Bus) PublishUser(userID string, event map[string]interface{}) error {
	return b.Publish("user:"+userID, event)
}

// Publish publishes an event to a channel and appends it to the channel's
// history stream.
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := b.rdb.Publish(b.ctx, channel, data).Err(); err != nil {
		b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	if err := b.streams.Append(channel, event); err != nil {
		b.log.Warn("Failed to append to history stream", zap.String("channel", channel), zap.Error(err))
		// Live delivery succeeded; history is best effort
	}

	if b.wsHub != nil {
		b.wsHub.Publish(channel, event)
	}

	b.log.Debug("Published event", zap.String("channel", channel), zap.String("event", string(data)))
	return nil
}
