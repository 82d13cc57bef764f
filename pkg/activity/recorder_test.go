package activity

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline/intranet/pkg/observability"
)

func setupTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE
		);

		CREATE TABLE pages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL
		);

		CREATE TABLE page_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			page_id INTEGER NOT NULL
		);

		CREATE TABLE activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			actor_id INTEGER NOT NULL REFERENCES users(id),
			page_id INTEGER REFERENCES pages(id) ON DELETE SET NULL,
			version_id INTEGER REFERENCES page_versions(id) ON DELETE SET NULL,
			data TEXT,
			created_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	recorder, err := NewRecorder(db, logger)
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}
	return recorder
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	recorder := setupTestRecorder(t)
	ctx := context.Background()

	pageID := int64(5)
	entry := &Entry{
		Action:  ActionCreate,
		ActorID: 1,
		PageID:  &pageID,
		Data:    map[string]interface{}{"title": "Doc"},
	}
	require.NoError(t, recorder.Record(ctx, nil, entry))

	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	entries, err := recorder.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionCreate, entries[0].Action)
	assert.Equal(t, "Doc", entries[0].Data["title"])
	require.NotNil(t, entries[0].PageID)
	assert.Equal(t, int64(5), *entries[0].PageID)
}

func TestRecordInsideTransaction(t *testing.T) {
	recorder := setupTestRecorder(t)
	ctx := context.Background()

	tx, err := recorder.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, recorder.Record(ctx, tx, &Entry{Action: ActionUpdate, ActorID: 1}))
	require.NoError(t, tx.Rollback())

	// The entry dies with the transaction.
	entries, err := recorder.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListFilters(t *testing.T) {
	recorder := setupTestRecorder(t)
	ctx := context.Background()

	pageA, pageB := int64(1), int64(2)
	seed := []*Entry{
		{Action: ActionCreate, ActorID: 1, PageID: &pageA},
		{Action: ActionUpdate, ActorID: 2, PageID: &pageA},
		{Action: ActionCreate, ActorID: 2, PageID: &pageB},
		{Action: ActionRevert, ActorID: 1, PageID: &pageB},
	}
	for i, e := range seed {
		e.CreatedAt = time.Date(2026, 1, 1, 12, i, 0, 0, time.UTC)
		require.NoError(t, recorder.Record(ctx, nil, e))
	}

	byPage, err := recorder.List(ctx, Filter{PageID: &pageA})
	require.NoError(t, err)
	assert.Len(t, byPage, 2)

	actor := int64(2)
	byActor, err := recorder.List(ctx, Filter{ActorID: &actor})
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	byAction, err := recorder.List(ctx, Filter{Action: ActionRevert})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, ActionRevert, byAction[0].Action)

	combined, err := recorder.List(ctx, Filter{PageID: &pageB, ActorID: &actor})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, ActionCreate, combined[0].Action)
}

func TestListNewestFirstWithPaging(t *testing.T) {
	recorder := setupTestRecorder(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, recorder.Record(ctx, nil, &Entry{
			Action:    ActionUpdate,
			ActorID:   1,
			CreatedAt: time.Date(2026, 1, 1, 12, i, 0, 0, time.UTC),
		}))
	}

	page1, err := recorder.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))

	page2, err := recorder.List(ctx, Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.True(t, page1[1].CreatedAt.After(page2[0].CreatedAt))
}

func TestCleanup(t *testing.T) {
	recorder := setupTestRecorder(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -100)
	recent := time.Now()
	require.NoError(t, recorder.Record(ctx, nil, &Entry{Action: ActionCreate, ActorID: 1, CreatedAt: old}))
	require.NoError(t, recorder.Record(ctx, nil, &Entry{Action: ActionUpdate, ActorID: 1, CreatedAt: recent}))

	removed, err := recorder.Cleanup(ctx, time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err := recorder.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionUpdate, entries[0].Action)
}

func TestRecordBestEffortSwallowsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS activity_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	recorder, err := NewRecorder(db, observability.NewLogger(observability.ErrorLevel, io.Discard))
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO activity_log").
		WillReturnError(sql.ErrConnDone)

	// Must not panic or propagate the failure.
	recorder.RecordBestEffort(context.Background(), &Entry{Action: ActionRevert, ActorID: 1})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderCountsEntriesAndDrops(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	recorder := setupTestRecorder(t)
	recorder.SetMetrics(metrics)

	require.NoError(t, recorder.Record(context.Background(), nil, &Entry{Action: ActionCreate, ActorID: 1}))
	require.NoError(t, recorder.Record(context.Background(), nil, &Entry{Action: ActionCreate, ActorID: 1}))
	require.NoError(t, recorder.Record(context.Background(), nil, &Entry{Action: ActionUpdate, ActorID: 1}))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ActivityEntriesTotal.WithLabelValues(string(ActionCreate))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActivityEntriesTotal.WithLabelValues(string(ActionUpdate))))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActivityRecordFailures))

	// A dropped best-effort entry counts as a failure, not an entry.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS activity_log").
		WillReturnResult(sqlmock.NewResult(0, 0))
	broken, err := NewRecorder(db, observability.NewLogger(observability.ErrorLevel, io.Discard))
	require.NoError(t, err)
	broken.SetMetrics(metrics)

	mock.ExpectQuery("INSERT INTO activity_log").
		WillReturnError(sql.ErrConnDone)
	broken.RecordBestEffort(context.Background(), &Entry{Action: ActionRevert, ActorID: 1})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActivityRecordFailures))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActivityEntriesTotal.WithLabelValues(string(ActionRevert))))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecorderRequiresDB(t *testing.T) {
	_, err := NewRecorder(nil, nil)
	assert.Error(t, err)
}
