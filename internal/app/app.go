// Package app implements the entitlement and points-accounting engine plus
// the account, book, chapter, and daily-question operations built around it.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookie/internal/util"
	"bookie/pkg/events"
	"bookie/pkg/queue"
	"bookie/pkg/storage"
	"bookie/pkg/store"
)

// JobQueue is the slice of the ingest queue the app needs.
type JobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) (queue.JobStatus, error)
	GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	Store    store.Store
	Objects  storage.ObjectStore
	Queue    JobQueue
	Events   *events.AMQPPublisher
	Sessions *store.JWTSessionManager

	StartingPoints    float64
	PayoutPolicy      PayoutPolicy
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store    store.Store
	objects  storage.ObjectStore
	queue    JobQueue
	events   *events.AMQPPublisher
	sessions *store.JWTSessionManager

	startingPoints    float64
	payoutPolicy      PayoutPolicy
	maxUploadBytes    int64
	allowedExtensions map[string]bool
	presignExpiry     time.Duration
}

// New constructs the application. Objects, Queue, and Events may be nil; the
// operations needing them fail with a clear error instead of panicking.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if cfg.StartingPoints < 0 {
		return nil, fmt.Errorf("starting points must be >= 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".pdf", ".epub", ".txt", ".md"}
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &App{
		store:             cfg.Store,
		objects:           cfg.Objects,
		queue:             cfg.Queue,
		events:            cfg.Events,
		sessions:          cfg.Sessions,
		startingPoints:    cfg.StartingPoints,
		payoutPolicy:      cfg.PayoutPolicy,
		maxUploadBytes:    cfg.MaxUploadBytes,
		allowedExtensions: allowed,
		presignExpiry:     15 * time.Minute,
	}, nil
}

// logEventError logs a failed event publish without failing the operation.
// Events are integration notifications; the accounting already committed.
func logEventError(ctx context.Context, routingKey string, err error) {
	util.LoggerFromContext(ctx).Warn("event_publish_failed", "routing_key", routingKey, "error", err.Error())
}
