package models

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// EventStore is the persistence the collector handlers need.
type EventStore interface {
	InsertTrackEvent(ctx context.Context, ev TrackEvent) (TrackEvent, error)
	ListTrackEvents(ctx context.Context, experimentID string) ([]TrackEvent, error)
	InsertWebhookEvent(ctx context.Context, ev WebhookEvent) (WebhookEvent, error)
	Ping(ctx context.Context) error
	Driver() string
}

// RateLimiterEntry is the limiter for one client IP.
type RateLimiterEntry struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

type App struct {
	Store          EventStore
	LimiterMap     map[string]*RateLimiterEntry
	LimiterMutex   sync.RWMutex
	IsProduction   bool
	StartTime      time.Time
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	AllowedOrigins []string
	Now            func() time.Time
}

func (a *App) Clock() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
