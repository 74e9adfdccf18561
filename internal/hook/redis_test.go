package hook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_RunPostScanHook(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := NewRedisClient(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, "scans")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	p := NewPublisher(rdb, "scans", zerolog.Nop())
	require.NoError(t, p.RunPostScanHook(ctx, []string{"1", "2"}, true))

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, eventType, ev.Type)
		assert.Equal(t, []string{"1", "2"}, ev.NewListingIDs)
		assert.True(t, ev.EmailAlerts)
		assert.False(t, ev.FinishedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no scan event received")
	}
}

func TestPublisher_EmptyCycleStillPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := NewPublisher(rdb, "", zerolog.Nop())
	assert.Equal(t, DefaultChannel, p.channel)
	assert.NoError(t, p.RunPostScanHook(context.Background(), nil, false))
}

func TestPublisher_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err := NewPublisher(rdb, "scans", zerolog.Nop()).RunPostScanHook(context.Background(), []string{"1"}, false)
	assert.Error(t, err)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
