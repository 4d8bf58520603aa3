package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityfibre/fieldsync/internal/model"
)

func sampleReport() *model.VerificationReport {
	return &model.VerificationReport{
		BatchID:     "IMP_20250601-080000_abc123",
		FileName:    "export.csv",
		GeneratedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		Summary: model.ReportSummary{
			TotalRecords:         120,
			NewRecords:           30,
			DuplicateRecords:     90,
			VerificationPassed:   false,
			FirstPolePermissions: 4,
			FirstPolesPlanted:    2,
			TotalHomeSignups:     11,
		},
		SpotChecks: []model.SpotCheck{
			{PropertyID: "P-1", ExistsInStore: true, TrackingID: model.TrackingID{Type: model.TrackingPole, Value: "LAW.P.A1"}},
		},
		Counts: model.CountSummary{
			TotalRecords:      120,
			UniquePropertyIDs: 118,
			UniquePoles:       40,
			UniqueAddresses:   115,
			StatusBreakdown:   map[string]int{"Pole Planted": 70, "Home Sign Ups: Approved": 50},
		},
		Constraints: model.ConstraintResults{
			Capacity: model.CapacityCheck{Passed: false, Violations: []model.CapacityViolation{
				{Pole: "LAW.P.A1", DropCount: 13, Limit: 12},
			}},
			Geofence:       model.GeofenceCheck{Passed: true},
			StatusConflict: model.StatusConflictCheck{Passed: true},
		},
		NewPoles:      []model.NewPole{{Pole: "LAW.P.B9", IsFirstInstance: true}},
		StatusChanges: []model.StatusChange{{PropertyID: "P-7", OldStatus: "Pole Permission: Approved", NewStatus: "Pole Planted"}},
		RedFlags:      []string{"record without property id skipped"},
	}
}

func TestFormatReport_Sections(t *testing.T) {
	text := FormatReport(sampleReport())

	assert.Contains(t, text, "# Import Report")
	assert.Contains(t, text, "Batch ID: IMP_20250601-080000_abc123")
	assert.Contains(t, text, "## Summary")
	assert.Contains(t, text, "Total Records Processed: 120")
	assert.Contains(t, text, "## First Instance Tracking")
	assert.Contains(t, text, "First Pole Permissions: 4")
	assert.Contains(t, text, "## Verification Checks")
	assert.Contains(t, text, "Spot Checks (1 samples)")
	assert.Contains(t, text, "Unique Property IDs: 118")
	assert.Contains(t, text, "Drops per Pole: FAILED")
	assert.Contains(t, text, "Pole LAW.P.A1 has 13 drops (limit: 12)")
	assert.Contains(t, text, "GPS Bounds: PASSED")
	assert.Contains(t, text, "## Changes Detected")
	assert.Contains(t, text, "New Poles: 1")
	assert.Contains(t, text, `Property P-7: "Pole Permission: Approved" -> "Pole Planted"`)
	assert.Contains(t, text, "## Red Flags")
}

func TestFormatReport_NoRedFlagSection(t *testing.T) {
	r := sampleReport()
	r.RedFlags = nil

	text := FormatReport(r)
	assert.NotContains(t, text, "## Red Flags")
}

func TestWriteReportFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := WriteReportFile(dir, "IMP_1", "report body\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "import_report_IMP_1.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report body\n", string(data))
}
