package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/velocityfibre/fieldsync/internal/model"
)

// FormatReport renders the human-readable form of a verification
// report.
func FormatReport(r *model.VerificationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Import Report\n")
	fmt.Fprintf(&b, "Batch ID: %s\n", r.BatchID)
	fmt.Fprintf(&b, "File: %s\n", r.FileName)
	fmt.Fprintf(&b, "Date: %s\n\n", r.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total Records Processed: %d\n", r.Summary.TotalRecords)
	fmt.Fprintf(&b, "- New Records Imported: %d\n", r.Summary.NewRecords)
	fmt.Fprintf(&b, "- Updated Records: %d\n", r.Summary.DuplicateRecords)
	fmt.Fprintf(&b, "- Verification Status: %s\n\n", passFail(r.Summary.VerificationPassed))

	b.WriteString("## First Instance Tracking\n")
	fmt.Fprintf(&b, "- First Pole Permissions: %d\n", r.Summary.FirstPolePermissions)
	fmt.Fprintf(&b, "- First Poles Planted: %d\n", r.Summary.FirstPolesPlanted)
	fmt.Fprintf(&b, "- First Home Sign-ups: %d\n", r.Summary.FirstHomeSignups)
	fmt.Fprintf(&b, "- First Home Installs: %d\n", r.Summary.FirstHomeInstalls)
	fmt.Fprintf(&b, "- Total Home Sign-ups (all homes): %d\n\n", r.Summary.TotalHomeSignups)

	b.WriteString("## Verification Checks\n\n")

	fmt.Fprintf(&b, "### Spot Checks (%d samples)\n", len(r.SpotChecks))
	for _, check := range r.SpotChecks {
		state := "New record"
		if check.ExistsInStore {
			state = "Staged"
		}
		fmt.Fprintf(&b, "- Property %s: %s | Tracking: %s=%s\n",
			check.PropertyID, state, check.TrackingID.Type, check.TrackingID.Value)
	}
	b.WriteString("\n")

	b.WriteString("### Count Verification\n")
	fmt.Fprintf(&b, "- Unique Property IDs: %d\n", r.Counts.UniquePropertyIDs)
	fmt.Fprintf(&b, "- Unique Poles: %d\n", r.Counts.UniquePoles)
	fmt.Fprintf(&b, "- Unique Addresses: %d\n\n", r.Counts.UniqueAddresses)

	b.WriteString("Status Breakdown:\n")
	statuses := make([]string, 0, len(r.Counts.StatusBreakdown))
	for s := range r.Counts.StatusBreakdown {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "- %s: %d\n", s, r.Counts.StatusBreakdown[s])
	}
	b.WriteString("\n")

	b.WriteString("### Business Logic Checks\n")
	fmt.Fprintf(&b, "- Drops per Pole: %s\n", passFail(r.Constraints.Capacity.Passed))
	for _, v := range r.Constraints.Capacity.Violations {
		fmt.Fprintf(&b, "  - Pole %s has %d drops (limit: %d)\n", v.Pole, v.DropCount, v.Limit)
	}
	fmt.Fprintf(&b, "- GPS Bounds: %s\n", passFail(r.Constraints.Geofence.Passed))
	if n := len(r.Constraints.Geofence.Violations); n > 0 {
		fmt.Fprintf(&b, "  - %d records outside the project area\n", n)
	}
	fmt.Fprintf(&b, "- Status Conflicts: %s\n", passFail(r.Constraints.StatusConflict.Passed))
	for _, v := range r.Constraints.StatusConflict.Violations {
		fmt.Fprintf(&b, "  - Pole %s: %s\n", v.Pole, strings.Join(v.Statuses, ", "))
	}
	b.WriteString("\n")

	b.WriteString("## Changes Detected\n")
	fmt.Fprintf(&b, "- New Poles: %d\n", len(r.NewPoles))
	fmt.Fprintf(&b, "- Status Changes: %d\n", len(r.StatusChanges))
	for _, c := range r.StatusChanges {
		fmt.Fprintf(&b, "  - Property %s: %q -> %q\n", c.PropertyID, c.OldStatus, c.NewStatus)
	}

	if len(r.RedFlags) > 0 {
		b.WriteString("\n## Red Flags\n")
		for _, flag := range r.RedFlags {
			fmt.Fprintf(&b, "- %s\n", flag)
		}
	}

	return b.String()
}

// WriteReportFile persists the rendered report to the reports
// directory, named by batch id. Returns the written path.
func WriteReportFile(dir, batchID, text string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create dir %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("import_report_%s.txt", batchID))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", eris.Wrapf(err, "report: write %s", path)
	}
	return path, nil
}

func passFail(ok bool) string {
	if ok {
		return "PASSED"
	}
	return "FAILED"
}
