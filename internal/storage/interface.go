package storage

import (
	"context"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
)

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// Snapshot operations
	SaveSnapshot(ctx context.Context, snapshot *domain.MetricsSnapshot) error
	GetSnapshot(ctx context.Context, id string) (*domain.MetricsSnapshot, error)
	GetLatestSnapshot(ctx context.Context, project string) (*domain.MetricsSnapshot, error)
	ListSnapshots(ctx context.Context, project string, limit int) ([]*domain.MetricsSnapshot, error)

	// Sprint history operations (forecast training data)
	SaveSprintRecord(ctx context.Context, record *domain.HistoricalSprintRecord) error
	GetSprintRecords(ctx context.Context, project string, limit int) ([]domain.HistoricalSprintRecord, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
