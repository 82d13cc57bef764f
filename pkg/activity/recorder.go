package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ridgeline/intranet/pkg/observability"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so a
// mutation can write its activity entry inside its own transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Recorder appends activity entries to the activity_log table.
type Recorder struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRecorder creates a recorder and ensures the activity_log table exists.
func NewRecorder(db *sql.DB, logger *observability.Logger) (*Recorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	r := &Recorder{db: db, logger: logger}
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure activity_log table: %w", err)
	}
	return r, nil
}

// SetMetrics attaches entry and drop counters. Optional.
func (r *Recorder) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// ensureTable creates the activity_log table if it doesn't exist. Page and
// version references are SET NULL on delete so the audit trail outlives the
// rows it documents.
func (r *Recorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS activity_log (
		id BIGSERIAL PRIMARY KEY,
		action VARCHAR(50) NOT NULL,
		actor_id BIGINT NOT NULL REFERENCES users(id),
		page_id BIGINT REFERENCES pages(id) ON DELETE SET NULL,
		version_id BIGINT REFERENCES page_versions(id) ON DELETE SET NULL,
		data JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_log_created_at ON activity_log(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_activity_log_page_id ON activity_log(page_id);
	CREATE INDEX IF NOT EXISTS idx_activity_log_actor_id ON activity_log(actor_id);
	CREATE INDEX IF NOT EXISTS idx_activity_log_action ON activity_log(action);
	`

	_, err := r.db.Exec(query)
	return err
}

// Record writes an entry using q, which is either the shared *sql.DB or the
// transaction of the mutation being documented. The entry's ID and
// CreatedAt are filled in on success.
func (r *Recorder) Record(ctx context.Context, q Querier, e *Entry) error {
	if q == nil {
		q = r.db
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var dataJSON []byte
	if e.Data != nil {
		var err error
		dataJSON, err = json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal activity data: %w", err)
		}
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO activity_log (action, actor_id, page_id, version_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, e.Action, e.ActorID, e.PageID, e.VersionID, dataJSON, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}

	if r.metrics != nil {
		r.metrics.ActivityEntriesTotal.WithLabelValues(string(e.Action)).Inc()
	}
	return nil
}

// RecordBestEffort writes an entry outside any transaction and swallows
// failures after logging them. Used where losing the entry must not fail
// the parent operation (revert).
func (r *Recorder) RecordBestEffort(ctx context.Context, e *Entry) {
	if err := r.Record(ctx, r.db, e); err != nil {
		if r.logger != nil {
			r.logger.WithError(err).
				WithField("action", string(e.Action)).
				Warn("activity entry dropped")
		}
		if r.metrics != nil {
			r.metrics.ActivityRecordFailures.Inc()
		}
	}
}

// List returns entries matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := `
		SELECT id, action, actor_id, page_id, version_id, data, created_at
		FROM activity_log
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.PageID != nil {
		query += fmt.Sprintf(" AND page_id = $%d", argCount)
		args = append(args, *filter.PageID)
		argCount++
	}
	if filter.ActorID != nil {
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, *filter.ActorID)
		argCount++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, string(filter.Action))
		argCount++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		e := &Entry{}
		var dataJSON []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.PageID, &e.VersionID, &dataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity data: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity entries: %w", err)
	}

	return entries, nil
}

// Cleanup deletes entries older than the cutoff and returns how many were
// removed. Retention is the only path that ever deletes activity rows.
func (r *Recorder) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM activity_log WHERE created_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up activity log: %w", err)
	}
	return result.RowsAffected()
}
