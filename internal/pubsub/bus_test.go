package pubsub

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, zap.NewNop())
}

type captureHub struct {
	channels []string
	messages []map[string]interface{}
}

func (h *captureHub) Publish(channel string, message map[string]interface{}) {
	h.channels = append(h.channels, channel)
	h.messages = append(h.messages, message)
}

func TestBus_PublishApplicationReachesHub(t *testing.T) {
	bus := newTestBus(t)
	hub := &captureHub{}
	bus.SetWSHub(hub)

	err := bus.PublishApplication("app1", map[string]interface{}{
		"type":          "status.changed",
		"applicationId": "app1",
	})
	require.NoError(t, err)

	require.Len(t, hub.channels, 1)
	assert.Equal(t, "application:app1", hub.channels[0])
	assert.Equal(t, "status.changed", hub.messages[0]["type"])
}

func TestBus_HistoryRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	require.NoError(t, bus.PublishApplication("app1", map[string]interface{}{"type": "status.changed", "to": "READY_TO_SUBMIT"}))
	require.NoError(t, bus.PublishApplication("app1", map[string]interface{}{"type": "status.changed", "to": "SUBMITTED_WAITING"}))
	require.NoError(t, bus.PublishApplication("app2", map[string]interface{}{"type": "milestone.updated"}))

	events, err := bus.GetStreams().History("application:app1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// chronological order, oldest first
	assert.Equal(t, "READY_TO_SUBMIT", events[0].Event["to"])
	assert.Equal(t, "SUBMITTED_WAITING", events[1].Event["to"])
	assert.Equal(t, "application:app1", events[0].Channel)
}

func TestBus_HistoryEmptyChannel(t *testing.T) {
	bus := newTestBus(t)

	events, err := bus.GetStreams().History("application:none", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestBus_PublishUserChannel(t *testing.T) {
	bus := newTestBus(t)
	hub := &captureHub{}
	bus.SetWSHub(hub)

	err := bus.PublishUser("user1", map[string]interface{}{"type": "application.created"})
	require.NoError(t, err)
	require.Len(t, hub.channels, 1)
	assert.Equal(t, "user:user1", hub.channels[0])
}
