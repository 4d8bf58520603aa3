package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/velocityfibre/fieldsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS staged_assets (
	property_id     TEXT PRIMARY KEY,
	tracking_key    TEXT NOT NULL,
	snapshot        TEXT NOT NULL,
	version         INTEGER NOT NULL DEFAULT 1,
	batch_id        TEXT NOT NULL,
	first_seen_at   DATETIME NOT NULL,
	last_updated_at DATETIME NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS first_instances (
	tracking_value    TEXT NOT NULL,
	normalized_status TEXT NOT NULL,
	property_id       TEXT NOT NULL,
	batch_id          TEXT NOT NULL,
	first_seen_at     DATETIME NOT NULL,
	PRIMARY KEY (tracking_value, normalized_status)
);

CREATE TABLE IF NOT EXISTS change_history (
	id                TEXT PRIMARY KEY,
	property_id       TEXT NOT NULL,
	batch_id          TEXT NOT NULL,
	change_type       TEXT NOT NULL,
	changed_at        DATETIME NOT NULL,
	snapshot          TEXT NOT NULL,
	is_first_instance INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS import_batches (
	batch_id            TEXT PRIMARY KEY,
	file_name           TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'processing',
	total_records       INTEGER NOT NULL DEFAULT 0,
	new_records         INTEGER NOT NULL DEFAULT 0,
	duplicate_count     INTEGER NOT NULL DEFAULT 0,
	verification_passed INTEGER NOT NULL DEFAULT 0,
	error_message       TEXT,
	started_at          DATETIME NOT NULL,
	completed_at        DATETIME
);

CREATE TABLE IF NOT EXISTS import_reports (
	batch_id   TEXT PRIMARY KEY,
	report     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_change_history_property ON change_history(property_id);
CREATE INDEX IF NOT EXISTS idx_change_history_batch ON change_history(batch_id);
CREATE INDEX IF NOT EXISTS idx_import_batches_status ON import_batches(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert creates or updates the staged asset for a natural key. The
// version increment is computed inside the UPDATE clause, so concurrent
// upserts serialize at the database and never reuse a version. Created
// and Previous come from a separate read before the conditional write:
// two overlapping upserts of the same new key can both report
// Created=true even though the version sequence stays correct.
func (s *SQLiteStore) Upsert(ctx context.Context, naturalKey, trackingKey string, snapshot model.Record, batchID string) (*UpsertResult, error) {
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal snapshot")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var prevJSON sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT snapshot FROM staged_assets WHERE property_id = ?`,
		naturalKey,
	).Scan(&prevJSON)
	if err != nil && err != sql.ErrNoRows {
		return nil, eris.Wrapf(err, "sqlite: read previous snapshot %s", naturalKey)
	}

	now := time.Now().UTC()
	var version int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO staged_assets (property_id, tracking_key, snapshot, version, batch_id, first_seen_at, last_updated_at, is_active)
		 VALUES (?, ?, ?, 1, ?, ?, ?, 1)
		 ON CONFLICT(property_id) DO UPDATE SET
			tracking_key = excluded.tracking_key,
			snapshot = excluded.snapshot,
			version = staged_assets.version + 1,
			batch_id = excluded.batch_id,
			last_updated_at = excluded.last_updated_at
		 RETURNING version`,
		naturalKey, trackingKey, string(snapJSON), batchID, now, now,
	).Scan(&version)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert %s", naturalKey)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert tx")
	}

	res := &UpsertResult{Created: !prevJSON.Valid, Version: version}
	if prevJSON.Valid {
		if err := json.Unmarshal([]byte(prevJSON.String), &res.Previous); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal previous snapshot")
		}
	}
	return res, nil
}

func (s *SQLiteStore) Get(ctx context.Context, naturalKey string) (*model.StagedAsset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT property_id, tracking_key, snapshot, version, batch_id, first_seen_at, last_updated_at, is_active
		 FROM staged_assets WHERE property_id = ?`,
		naturalKey,
	)

	var a model.StagedAsset
	var snapJSON string
	err := row.Scan(&a.NaturalKey, &a.TrackingKey, &snapJSON, &a.Version, &a.BatchID, &a.FirstSeenAt, &a.LastUpdatedAt, &a.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", naturalKey)
	}
	if err := json.Unmarshal([]byte(snapJSON), &a.Snapshot); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &a, nil
}

// ClaimFirstInstance inserts the pair if absent. The conditional insert
// is a single statement; rows-affected tells us whether this call won.
func (s *SQLiteStore) ClaimFirstInstance(ctx context.Context, trackingValue, normalizedStatus, propertyID, batchID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO first_instances (tracking_value, normalized_status, property_id, batch_id, first_seen_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tracking_value, normalized_status) DO NOTHING`,
		trackingValue, normalizedStatus, propertyID, batchID, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim first instance %s/%s", trackingValue, normalizedStatus)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) Append(ctx context.Context, entry model.ChangeEntry) error {
	snapJSON, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal history snapshot")
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	changedAt := entry.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO change_history (id, property_id, batch_id, change_type, changed_at, snapshot, is_first_instance)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, entry.NaturalKey, entry.BatchID, string(entry.ChangeType), changedAt, string(snapJSON), entry.IsFirstInstance,
	)
	return eris.Wrapf(err, "sqlite: append history for %s", entry.NaturalKey)
}

func (s *SQLiteStore) ListHistory(ctx context.Context, naturalKey string) ([]model.ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, property_id, batch_id, change_type, changed_at, snapshot, is_first_instance
		 FROM change_history WHERE property_id = ? ORDER BY changed_at, id`,
		naturalKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list history for %s", naturalKey)
	}
	defer rows.Close() //nolint:errcheck

	var entries []model.ChangeEntry
	for rows.Next() {
		var e model.ChangeEntry
		var snapJSON string
		if err := rows.Scan(&e.ID, &e.NaturalKey, &e.BatchID, &e.ChangeType, &e.ChangedAt, &snapJSON, &e.IsFirstInstance); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history entry")
		}
		if err := json.Unmarshal([]byte(snapJSON), &e.Snapshot); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal history snapshot")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list history iterate")
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, batchID, fileName string) (*model.Batch, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_batches (batch_id, file_name, status, started_at) VALUES (?, ?, ?, ?)`,
		batchID, fileName, string(model.BatchProcessing), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create batch %s", batchID)
	}
	return &model.Batch{
		ID:        batchID,
		FileName:  fileName,
		Status:    model.BatchProcessing,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteBatch(ctx context.Context, batchID string, counters BatchCounters) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_batches
		 SET status = ?, total_records = ?, new_records = ?, duplicate_count = ?, verification_passed = ?, completed_at = ?
		 WHERE batch_id = ? AND status = ?`,
		string(model.BatchCompleted), counters.TotalRecords, counters.NewRecords, counters.DuplicateCount,
		counters.VerificationPassed, time.Now().UTC(), batchID, string(model.BatchProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete batch %s", batchID)
	}
	return checkBatchTransition(res, batchID)
}

func (s *SQLiteStore) FailBatch(ctx context.Context, batchID, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_batches SET status = ?, error_message = ?, completed_at = ? WHERE batch_id = ? AND status = ?`,
		string(model.BatchFailed), errMsg, time.Now().UTC(), batchID, string(model.BatchProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail batch %s", batchID)
	}
	return checkBatchTransition(res, batchID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT batch_id, file_name, status, total_records, new_records, duplicate_count, verification_passed, error_message, started_at, completed_at
		 FROM import_batches WHERE batch_id = ?`,
		batchID,
	)
	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("batch not found: %s", batchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", batchID)
	}
	return b, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]model.Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, file_name, status, total_records, new_records, duplicate_count, verification_passed, error_message, started_at, completed_at
		 FROM import_batches ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close() //nolint:errcheck

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: list batches iterate")
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report *model.VerificationReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO import_reports (batch_id, report, created_at) VALUES (?, ?, ?)`,
		report.BatchID, string(reportJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save report for batch %s", report.BatchID)
}

func (s *SQLiteStore) GetReport(ctx context.Context, batchID string) (*model.VerificationReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM import_reports WHERE batch_id = ?`,
		batchID,
	).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report for batch %s", batchID)
	}

	var report model.VerificationReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &report, nil
}

// helpers

// checkBatchTransition enforces that terminal batch states are final: a
// zero-row update means the batch is missing or already terminal.
func checkBatchTransition(res sql.Result, batchID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("batch not found or already terminal: %s", batchID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (*model.Batch, error) {
	var b model.Batch
	var status string
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&b.ID, &b.FileName, &status, &b.TotalRecords, &b.NewRecords, &b.DuplicateCount,
		&b.VerificationPassed, &errMsg, &b.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	b.Status = model.BatchStatus(status)
	if errMsg.Valid {
		b.ErrorMessage = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return &b, nil
}
