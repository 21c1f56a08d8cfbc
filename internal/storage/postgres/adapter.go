package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/pmaffi/jira-flow-metrics/internal/domain"
	"github.com/pmaffi/jira-flow-metrics/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		window_start TIMESTAMP NOT NULL,
		window_end TIMESTAMP NOT NULL,
		session_state TEXT NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project);
	CREATE INDEX IF NOT EXISTS idx_snapshots_project_created ON snapshots(project, created_at);

	CREATE TABLE IF NOT EXISTS sprint_records (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		sprint_name TEXT NOT NULL,
		estimated_hours DOUBLE PRECISION NOT NULL,
		completed_hours DOUBLE PRECISION NOT NULL,
		duration_days DOUBLE PRECISION NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sprint_records_project ON sprint_records(project);
	CREATE INDEX IF NOT EXISTS idx_sprint_records_project_ended ON sprint_records(project, ended_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveSnapshot persists a metrics snapshot
func (s *postgresStorage) SaveSnapshot(ctx context.Context, snapshot *domain.MetricsSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, project, window_start, window_end, session_state, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			session_state = EXCLUDED.session_state,
			data = EXCLUDED.data
	`, snapshot.ID, snapshot.Project, snapshot.Window.Start, snapshot.Window.End,
		string(snapshot.SessionState), string(data), snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot by ID
func (s *postgresStorage) GetSnapshot(ctx context.Context, id string) (*domain.MetricsSnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return unmarshalSnapshot(data)
}

// GetLatestSnapshot retrieves the most recent snapshot for a project
func (s *postgresStorage) GetLatestSnapshot(ctx context.Context, project string) (*domain.MetricsSnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM snapshots WHERE project = $1
		ORDER BY created_at DESC LIMIT 1
	`, project).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return unmarshalSnapshot(data)
}

// ListSnapshots retrieves recent snapshots for a project, newest first
func (s *postgresStorage) ListSnapshots(ctx context.Context, project string, limit int) ([]*domain.MetricsSnapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM snapshots WHERE project = $1
		ORDER BY created_at DESC LIMIT $2
	`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.MetricsSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		snapshot, err := unmarshalSnapshot(data)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

// SaveSprintRecord persists one historical sprint record
func (s *postgresStorage) SaveSprintRecord(ctx context.Context, record *domain.HistoricalSprintRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sprint_records
			(id, project, sprint_name, estimated_hours, completed_hours, duration_days, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			estimated_hours = EXCLUDED.estimated_hours,
			completed_hours = EXCLUDED.completed_hours,
			duration_days = EXCLUDED.duration_days
	`, record.ID, record.Project, record.SprintName, record.EstimatedHours,
		record.CompletedHours, record.DurationDays, record.EndedAt, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save sprint record: %w", err)
	}
	return nil
}

// GetSprintRecords retrieves the most recent sprint records for a project,
// oldest first so callers can feed them to the forecast directly
func (s *postgresStorage) GetSprintRecords(ctx context.Context, project string, limit int) ([]domain.HistoricalSprintRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project, sprint_name, estimated_hours, completed_hours, duration_days, ended_at, created_at
		FROM sprint_records WHERE project = $1
		ORDER BY ended_at DESC LIMIT $2
	`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get sprint records: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoricalSprintRecord
	for rows.Next() {
		var r domain.HistoricalSprintRecord
		if err := rows.Scan(&r.ID, &r.Project, &r.SprintName, &r.EstimatedHours,
			&r.CompletedHours, &r.DurationDays, &r.EndedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}

func unmarshalSnapshot(data string) (*domain.MetricsSnapshot, error) {
	var snapshot domain.MetricsSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}
