// Package store persists canonical events and serves the aggregation queries
// that feed graph analytics. Two backends implement the same interface:
// SQLite for single-machine use and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cdr-insight/internal/config"
	"github.com/sells-group/cdr-insight/internal/model"
)

// EventFilter narrows aggregation queries. Zero values mean "no constraint".
// UploadID is required by every caller: analytics is always scoped to one
// ingestion batch.
type EventFilter struct {
	UploadID  string
	From      *time.Time
	To        *time.Time
	EventType model.EventType
	Direction model.Direction
	MinWeight float64 // minimum edge weight (event count), edge aggregates only
}

// Store is the persistence interface for the CDR pipeline. Inserts are
// at-least-once under partial-batch failure: each InsertEvents call reports
// how many records it actually wrote.
type Store interface {
	// Uploads
	CreateUpload(ctx context.Context, id, label string, fileCount int) (*model.Upload, error)
	UpdateUploadCounts(ctx context.Context, id string, inserted, invalid, duplicates int) error
	GetUpload(ctx context.Context, id string) (*model.Upload, error)
	ListUploads(ctx context.Context, limit int) ([]model.Upload, error)

	// Events. Records are insert-only; re-ingestion creates new record IDs.
	InsertEvents(ctx context.Context, events []*model.CanonicalEvent) (int, error)

	// Aggregation for graph analytics. Self-loops and missing parties are
	// excluded here, and flagged duplicates never contribute.
	EdgeAggregates(ctx context.Context, f EventFilter) ([]model.EdgeAggregate, error)
	NodeAggregates(ctx context.Context, f EventFilter) ([]model.NodeAggregate, error)
	EventSummary(ctx context.Context, f EventFilter) (*model.EventSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
