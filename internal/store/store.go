// Package store persists analysis runs and the verdict cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reputato/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Company string          `json:"company,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis service.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, company string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, verdict *model.CompanyVerdict, sources []model.FetchOutcome) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Verdict cache, keyed by the exact company name.
	GetCachedVerdict(ctx context.Context, company string) (*model.CompanyVerdict, error)
	SetCachedVerdict(ctx context.Context, company string, verdict *model.CompanyVerdict, ttl time.Duration) error
	DeleteExpiredVerdicts(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
