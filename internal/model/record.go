// Package model defines the core data types for the field-data
// reconciliation pipeline: raw export records, staged assets, import
// batches, change history entries, and verification reports.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Column names as they appear in field export headers.
const (
	ColPropertyID = "Property ID"
	ColPoleNumber = "Pole Number"
	ColDropNumber = "Drop Number"
	ColLatitude   = "Latitude"
	ColLongitude  = "Longitude"
	ColAddress    = "Location Address"
	ColStatus     = "Status"
)

// Record is a single row of a field export, keyed by column header.
// No schema is enforced beyond the columns the resolver and validator
// look for.
type Record map[string]string

// PropertyID returns the record's natural key.
func (r Record) PropertyID() string { return strings.TrimSpace(r[ColPropertyID]) }

// PoleNumber returns the pole identifier, if present.
func (r Record) PoleNumber() string { return strings.TrimSpace(r[ColPoleNumber]) }

// DropNumber returns the drop identifier, if present.
func (r Record) DropNumber() string { return strings.TrimSpace(r[ColDropNumber]) }

// Address returns the location address, if present.
func (r Record) Address() string { return strings.TrimSpace(r[ColAddress]) }

// Status returns the raw (non-normalized) status value.
func (r Record) Status() string { return strings.TrimSpace(r[ColStatus]) }

// Coordinates parses the latitude/longitude pair. ok is false unless
// both fields are present and numeric.
func (r Record) Coordinates() (lat, lng float64, ok bool) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(r[ColLatitude]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(r[ColLongitude]), 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// StagedAsset is the durable latest-snapshot record for one real-world
// asset, keyed by property id. The snapshot is overwritten on every
// update; history lives in change_history, not here.
type StagedAsset struct {
	NaturalKey    string    `json:"natural_key"`
	TrackingKey   string    `json:"tracking_key"`
	Snapshot      Record    `json:"snapshot"`
	Version       int64     `json:"version"`
	BatchID       string    `json:"batch_id"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Active        bool      `json:"active"`
}

// ChangeType labels a change history entry.
type ChangeType string

const (
	ChangeNew    ChangeType = "new"
	ChangeUpdate ChangeType = "update"
)

// ChangeEntry is one append-only audit record, written once per
// processed record per batch.
type ChangeEntry struct {
	ID              string     `json:"id"`
	NaturalKey      string     `json:"natural_key"`
	BatchID         string     `json:"batch_id"`
	ChangeType      ChangeType `json:"change_type"`
	ChangedAt       time.Time  `json:"changed_at"`
	Snapshot        Record     `json:"snapshot"`
	IsFirstInstance bool       `json:"is_first_instance"`
}

// FirstInstance records the first-ever observation of a
// (tracking value, normalized status) pair. Entries are never updated
// or deleted.
type FirstInstance struct {
	TrackingValue    string    `json:"tracking_value"`
	NormalizedStatus string    `json:"normalized_status"`
	PropertyID       string    `json:"property_id"`
	BatchID          string    `json:"batch_id"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
}

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Batch is one pipeline invocation over one input file. Terminal
// states (completed, failed) are final; a failed batch is re-run by
// invoking the pipeline again on the same file, not by resuming.
type Batch struct {
	ID                 string      `json:"id"`
	FileName           string      `json:"file_name"`
	Status             BatchStatus `json:"status"`
	TotalRecords       int         `json:"total_records"`
	NewRecords         int         `json:"new_records"`
	DuplicateCount     int         `json:"duplicate_count"`
	VerificationPassed bool        `json:"verification_passed"`
	ErrorMessage       string      `json:"error_message,omitempty"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
}
