package model

import "time"

// ReportSummary aggregates per-batch counters, including the
// first-instance category counters used for milestone reporting.
type ReportSummary struct {
	TotalRecords       int  `json:"total_records"`
	NewRecords         int  `json:"new_records"`
	DuplicateRecords   int  `json:"duplicate_records"`
	VerificationPassed bool `json:"verification_passed"`

	// First-instance counters: each counts a (pole, normalized status)
	// pair the first time it is ever seen, across all batches.
	FirstPolePermissions int `json:"first_pole_permissions"`
	FirstPolesPlanted    int `json:"first_poles_planted"`
	FirstHomeSignups     int `json:"first_home_signups"`
	FirstHomeInstalls    int `json:"first_home_installs"`

	// TotalHomeSignups counts every signup with a drop number, not just
	// firsts (each home counts).
	TotalHomeSignups int `json:"total_home_signups"`
}

// SpotCheck is one pseudo-random sample probe against the staging store.
type SpotCheck struct {
	PropertyID    string     `json:"property_id"`
	PoleNumber    string     `json:"pole_number"`
	Address       string     `json:"address"`
	Status        string     `json:"status"`
	ExistsInStore bool       `json:"exists_in_store"`
	TrackingID    TrackingID `json:"tracking_id"`
}

// CountSummary holds whole-batch distinct counts and the status
// histogram.
type CountSummary struct {
	TotalRecords      int            `json:"total_records"`
	UniquePropertyIDs int            `json:"unique_property_ids"`
	UniquePoles       int            `json:"unique_poles"`
	UniqueAddresses   int            `json:"unique_addresses"`
	StatusBreakdown   map[string]int `json:"status_breakdown"`
}

// CapacityViolation reports a pole exceeding the drop limit.
type CapacityViolation struct {
	Pole      string `json:"pole"`
	DropCount int    `json:"drop_count"`
	Limit     int    `json:"limit"`
}

// GeofenceViolation reports coordinates outside the project bounds.
type GeofenceViolation struct {
	PropertyID string  `json:"property_id"`
	Pole       string  `json:"pole,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Address    string  `json:"address,omitempty"`
}

// StatusConflict reports a pole seen with more than one distinct
// normalized status within the batch.
type StatusConflict struct {
	Pole     string   `json:"pole"`
	Statuses []string `json:"statuses"`
}

// CapacityCheck is the drops-per-pole check result.
type CapacityCheck struct {
	Passed     bool                `json:"passed"`
	Violations []CapacityViolation `json:"violations"`
}

// GeofenceCheck is the GPS bounds check result.
type GeofenceCheck struct {
	Passed     bool                `json:"passed"`
	Violations []GeofenceViolation `json:"violations"`
}

// StatusConflictCheck is the conflicting-statuses check result.
type StatusConflictCheck struct {
	Passed     bool             `json:"passed"`
	Violations []StatusConflict `json:"violations"`
}

// ConstraintResults bundles the three whole-batch business checks.
// Violations are findings for human review; they never block staging.
type ConstraintResults struct {
	Capacity       CapacityCheck       `json:"capacity"`
	Geofence       GeofenceCheck       `json:"geofence"`
	StatusConflict StatusConflictCheck `json:"status_conflict"`
}

// AllPassed reports whether every constraint check passed.
func (c ConstraintResults) AllPassed() bool {
	return c.Capacity.Passed && c.Geofence.Passed && c.StatusConflict.Passed
}

// NewPole records a pole number seen on a newly staged record.
type NewPole struct {
	Pole            string `json:"pole"`
	Address         string `json:"address,omitempty"`
	Status          string `json:"status,omitempty"`
	IsFirstInstance bool   `json:"is_first_instance"`
}

// StatusChange records a status transition detected on update.
type StatusChange struct {
	PropertyID string `json:"property_id"`
	Pole       string `json:"pole,omitempty"`
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
}

// VerificationReport is the immutable per-batch verification artifact:
// spot checks, count verification, constraint results, detected
// changes, and the summary counters.
type VerificationReport struct {
	BatchID     string    `json:"batch_id"`
	FileName    string    `json:"file_name"`
	GeneratedAt time.Time `json:"generated_at"`

	Summary       ReportSummary     `json:"summary"`
	SpotChecks    []SpotCheck       `json:"spot_checks"`
	Counts        CountSummary      `json:"counts"`
	Constraints   ConstraintResults `json:"constraints"`
	NewPoles      []NewPole         `json:"new_poles"`
	StatusChanges []StatusChange    `json:"status_changes"`
	RedFlags      []string          `json:"red_flags,omitempty"`
}
