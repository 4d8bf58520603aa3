// Package store persists the four logical stores of the reconciliation
// pipeline (staged assets, the first-instance ledger, change history,
// and import batches) plus the generated verification reports, behind
// explicit repository interfaces with sqlite and postgres backends.
package store

import (
	"context"

	"github.com/velocityfibre/fieldsync/internal/model"
)

// UpsertResult reports the outcome of a staging upsert.
type UpsertResult struct {
	Created bool
	Version int64
	// Previous is the snapshot that was overwritten; nil when the
	// record was created.
	Previous model.Record
}

// StagingStore is versioned latest-snapshot storage keyed by natural
// key. Upsert must be an atomic read-modify-write per key: the version
// increment happens in a single conditional write at the storage layer,
// never as read-then-write application logic, so two concurrent upserts
// on the same key cannot compute the same version.
type StagingStore interface {
	Upsert(ctx context.Context, naturalKey, trackingKey string, snapshot model.Record, batchID string) (*UpsertResult, error)
	Get(ctx context.Context, naturalKey string) (*model.StagedAsset, error)
}

// LedgerStore is the permanent first-instance ledger. ClaimFirstInstance
// atomically inserts the (trackingValue, normalizedStatus) pair if it
// has never been seen and reports whether this call was the first ever,
// across all batches. Entries are never updated or deleted.
type LedgerStore interface {
	ClaimFirstInstance(ctx context.Context, trackingValue, normalizedStatus, propertyID, batchID string) (bool, error)
}

// HistoryLog is the append-only audit trail. Entries are written once
// per processed record per batch and read back only for reporting.
type HistoryLog interface {
	Append(ctx context.Context, entry model.ChangeEntry) error
	ListHistory(ctx context.Context, naturalKey string) ([]model.ChangeEntry, error)
}

// BatchCounters carries the final aggregate counters for a completed
// batch.
type BatchCounters struct {
	TotalRecords       int
	NewRecords         int
	DuplicateCount     int
	VerificationPassed bool
}

// BatchStore owns the batch lifecycle record. CompleteBatch and
// FailBatch only transition batches still in processing; terminal
// states are final.
type BatchStore interface {
	CreateBatch(ctx context.Context, batchID, fileName string) (*model.Batch, error)
	CompleteBatch(ctx context.Context, batchID string, counters BatchCounters) error
	FailBatch(ctx context.Context, batchID, errMsg string) error
	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)
	ListBatches(ctx context.Context, limit int) ([]model.Batch, error)
}

// ReportStore persists the structured verification report per batch.
type ReportStore interface {
	SaveReport(ctx context.Context, report *model.VerificationReport) error
	GetReport(ctx context.Context, batchID string) (*model.VerificationReport, error)
}

// Store is the full persistence interface for the pipeline.
type Store interface {
	StagingStore
	LedgerStore
	HistoryLog
	BatchStore
	ReportStore

	Migrate(ctx context.Context) error
	Close() error
}
