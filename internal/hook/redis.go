// Package hook announces finished scan cycles on Redis so downstream workers
// (email alerts, analysis) can pick up the new listings.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultChannel = "EVENT_SCAN_COMPLETED"
	eventType      = "EVENT_SCAN_COMPLETED"
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Event is the payload published after every scan cycle.
type Event struct {
	Type          string    `json:"type"`
	NewListingIDs []string  `json:"newListingIds"`
	EmailAlerts   bool      `json:"emailAlerts"`
	FinishedAt    time.Time `json:"finishedAt"`
}

type Publisher struct {
	rdb     redis.UniversalClient
	channel string
	logger  zerolog.Logger
}

func NewPublisher(rdb redis.UniversalClient, channel string, logger zerolog.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With().Str("component", "hook").Logger(),
	}
}

// RunPostScanHook publishes the cycle's new listing ids.
func (p *Publisher) RunPostScanHook(ctx context.Context, newListingIDs []string, emailAlerts bool) error {
	if newListingIDs == nil {
		newListingIDs = []string{}
	}
	event, err := json.Marshal(Event{
		Type:          eventType,
		NewListingIDs: newListingIDs,
		EmailAlerts:   emailAlerts,
		FinishedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal scan event: %w", err)
	}

	receivers, err := p.rdb.Publish(ctx, p.channel, event).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	p.logger.Debug().Str("channel", p.channel).Int("new", len(newListingIDs)).Int64("receivers", receivers).Msg("📣 Scan event published")
	return nil
}
