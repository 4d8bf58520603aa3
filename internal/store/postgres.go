package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/velocityfibre/fieldsync/internal/db"
	"github.com/velocityfibre/fieldsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS staged_assets (
	property_id     TEXT PRIMARY KEY,
	tracking_key    TEXT NOT NULL,
	snapshot        JSONB NOT NULL,
	version         BIGINT NOT NULL DEFAULT 1,
	batch_id        TEXT NOT NULL,
	first_seen_at   TIMESTAMPTZ NOT NULL,
	last_updated_at TIMESTAMPTZ NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS first_instances (
	tracking_value    TEXT NOT NULL,
	normalized_status TEXT NOT NULL,
	property_id       TEXT NOT NULL,
	batch_id          TEXT NOT NULL,
	first_seen_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tracking_value, normalized_status)
);

CREATE TABLE IF NOT EXISTS change_history (
	id                TEXT PRIMARY KEY,
	property_id       TEXT NOT NULL,
	batch_id          TEXT NOT NULL,
	change_type       TEXT NOT NULL,
	changed_at        TIMESTAMPTZ NOT NULL,
	snapshot          JSONB NOT NULL,
	is_first_instance BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS import_batches (
	batch_id            TEXT PRIMARY KEY,
	file_name           TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'processing',
	total_records       INTEGER NOT NULL DEFAULT 0,
	new_records         INTEGER NOT NULL DEFAULT 0,
	duplicate_count     INTEGER NOT NULL DEFAULT 0,
	verification_passed BOOLEAN NOT NULL DEFAULT false,
	error_message       TEXT,
	started_at          TIMESTAMPTZ NOT NULL,
	completed_at        TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS import_reports (
	batch_id   TEXT PRIMARY KEY,
	report     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_change_history_property ON change_history(property_id);
CREATE INDEX IF NOT EXISTS idx_change_history_batch ON change_history(batch_id);
CREATE INDEX IF NOT EXISTS idx_import_batches_status ON import_batches(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Upsert creates or updates the staged asset for a natural key. The
// version increment is computed inside the UPDATE clause; under
// concurrent upserts the second writer blocks on the row lock and then
// applies +1 to the committed version, so versions never repeat.
// Created and Previous come from a snapshot read before the conditional
// write: two overlapping upserts of the same new key can both report
// Created=true even though the version sequence stays correct.
func (s *PostgresStore) Upsert(ctx context.Context, naturalKey, trackingKey string, snapshot model.Record, batchID string) (*UpsertResult, error) {
	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal snapshot")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin upsert tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var prevJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT snapshot FROM staged_assets WHERE property_id = $1`,
		naturalKey,
	).Scan(&prevJSON)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: read previous snapshot %s", naturalKey)
	}

	now := time.Now().UTC()
	var version int64
	err = tx.QueryRow(ctx,
		`INSERT INTO staged_assets (property_id, tracking_key, snapshot, version, batch_id, first_seen_at, last_updated_at, is_active)
		 VALUES ($1, $2, $3, 1, $4, $5, $5, true)
		 ON CONFLICT (property_id) DO UPDATE SET
			tracking_key = EXCLUDED.tracking_key,
			snapshot = EXCLUDED.snapshot,
			version = staged_assets.version + 1,
			batch_id = EXCLUDED.batch_id,
			last_updated_at = EXCLUDED.last_updated_at
		 RETURNING version`,
		naturalKey, trackingKey, snapJSON, batchID, now,
	).Scan(&version)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert %s", naturalKey)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit upsert tx")
	}

	res := &UpsertResult{Created: prevJSON == nil, Version: version}
	if prevJSON != nil {
		if err := json.Unmarshal(prevJSON, &res.Previous); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal previous snapshot")
		}
	}
	return res, nil
}

func (s *PostgresStore) Get(ctx context.Context, naturalKey string) (*model.StagedAsset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT property_id, tracking_key, snapshot, version, batch_id, first_seen_at, last_updated_at, is_active
		 FROM staged_assets WHERE property_id = $1`,
		naturalKey,
	)

	var a model.StagedAsset
	var snapJSON []byte
	err := row.Scan(&a.NaturalKey, &a.TrackingKey, &snapJSON, &a.Version, &a.BatchID, &a.FirstSeenAt, &a.LastUpdatedAt, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", naturalKey)
	}
	if err := json.Unmarshal(snapJSON, &a.Snapshot); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &a, nil
}

func (s *PostgresStore) ClaimFirstInstance(ctx context.Context, trackingValue, normalizedStatus, propertyID, batchID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO first_instances (tracking_value, normalized_status, property_id, batch_id, first_seen_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tracking_value, normalized_status) DO NOTHING`,
		trackingValue, normalizedStatus, propertyID, batchID, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim first instance %s/%s", trackingValue, normalizedStatus)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Append(ctx context.Context, entry model.ChangeEntry) error {
	snapJSON, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal history snapshot")
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	changedAt := entry.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO change_history (id, property_id, batch_id, change_type, changed_at, snapshot, is_first_instance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, entry.NaturalKey, entry.BatchID, string(entry.ChangeType), changedAt, snapJSON, entry.IsFirstInstance,
	)
	return eris.Wrapf(err, "postgres: append history for %s", entry.NaturalKey)
}

func (s *PostgresStore) ListHistory(ctx context.Context, naturalKey string) ([]model.ChangeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, property_id, batch_id, change_type, changed_at, snapshot, is_first_instance
		 FROM change_history WHERE property_id = $1 ORDER BY changed_at, id`,
		naturalKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list history for %s", naturalKey)
	}
	defer rows.Close()

	var entries []model.ChangeEntry
	for rows.Next() {
		var e model.ChangeEntry
		var snapJSON []byte
		if err := rows.Scan(&e.ID, &e.NaturalKey, &e.BatchID, &e.ChangeType, &e.ChangedAt, &snapJSON, &e.IsFirstInstance); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history entry")
		}
		if err := json.Unmarshal(snapJSON, &e.Snapshot); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal history snapshot")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list history iterate")
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batchID, fileName string) (*model.Batch, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_batches (batch_id, file_name, status, started_at) VALUES ($1, $2, $3, $4)`,
		batchID, fileName, string(model.BatchProcessing), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create batch %s", batchID)
	}
	return &model.Batch{
		ID:        batchID,
		FileName:  fileName,
		Status:    model.BatchProcessing,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteBatch(ctx context.Context, batchID string, counters BatchCounters) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_batches
		 SET status = $1, total_records = $2, new_records = $3, duplicate_count = $4, verification_passed = $5, completed_at = $6
		 WHERE batch_id = $7 AND status = $8`,
		string(model.BatchCompleted), counters.TotalRecords, counters.NewRecords, counters.DuplicateCount,
		counters.VerificationPassed, time.Now().UTC(), batchID, string(model.BatchProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete batch %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch not found or already terminal: %s", batchID)
	}
	return nil
}

func (s *PostgresStore) FailBatch(ctx context.Context, batchID, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_batches SET status = $1, error_message = $2, completed_at = $3 WHERE batch_id = $4 AND status = $5`,
		string(model.BatchFailed), errMsg, time.Now().UTC(), batchID, string(model.BatchProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail batch %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch not found or already terminal: %s", batchID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT batch_id, file_name, status, total_records, new_records, duplicate_count, verification_passed, error_message, started_at, completed_at
		 FROM import_batches WHERE batch_id = $1`,
		batchID,
	)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("batch not found: %s", batchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", batchID)
	}
	return b, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]model.Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT batch_id, file_name, status, total_records, new_records, duplicate_count, verification_passed, error_message, started_at, completed_at
		 FROM import_batches ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

func (s *PostgresStore) SaveReport(ctx context.Context, report *model.VerificationReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_reports (batch_id, report, created_at) VALUES ($1, $2, $3)`,
		report.BatchID, reportJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save report for batch %s", report.BatchID)
}

func (s *PostgresStore) GetReport(ctx context.Context, batchID string) (*model.VerificationReport, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM import_reports WHERE batch_id = $1`,
		batchID,
	).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report for batch %s", batchID)
	}

	var report model.VerificationReport
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &report, nil
}
