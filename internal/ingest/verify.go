package ingest

import (
	"context"
	"math/rand"

	"github.com/rotisserie/eris"

	"github.com/velocityfibre/fieldsync/internal/model"
	"github.com/velocityfibre/fieldsync/internal/store"
)

// SpotChecks probes k pseudo-random distinct rows against the staging
// store and records the identity resolved for each. The random source
// is injected so tests are deterministic. Reads may race with writes
// from the same run; the samples are best-effort snapshots, not
// transactionally consistent with the rest of the report.
func SpotChecks(ctx context.Context, records []model.Record, staging store.StagingStore, k int, rng *rand.Rand) ([]model.SpotCheck, error) {
	if k > len(records) {
		k = len(records)
	}
	if k <= 0 {
		return nil, nil
	}

	checks := make([]model.SpotCheck, 0, k)
	for _, idx := range rng.Perm(len(records))[:k] {
		rec := records[idx]

		asset, err := staging.Get(ctx, rec.PropertyID())
		if err != nil {
			return nil, eris.Wrapf(err, "spot check property %s", rec.PropertyID())
		}

		checks = append(checks, model.SpotCheck{
			PropertyID:    rec.PropertyID(),
			PoleNumber:    rec.PoleNumber(),
			Address:       rec.Address(),
			Status:        rec.Status(),
			ExistsInStore: asset != nil,
			TrackingID:    model.ResolveTrackingID(rec),
		})
	}
	return checks, nil
}

// CountVerification computes whole-batch totals: distinct natural keys,
// poles, and addresses, plus a raw-status histogram.
func CountVerification(records []model.Record) model.CountSummary {
	propertyIDs := make(map[string]struct{})
	poles := make(map[string]struct{})
	addresses := make(map[string]struct{})
	breakdown := make(map[string]int)

	for _, rec := range records {
		if v := rec.PropertyID(); v != "" {
			propertyIDs[v] = struct{}{}
		}
		if v := rec.PoleNumber(); v != "" {
			poles[v] = struct{}{}
		}
		if v := rec.Address(); v != "" {
			addresses[v] = struct{}{}
		}

		status := rec.Status()
		if status == "" {
			status = "No Status"
		}
		breakdown[status]++
	}

	return model.CountSummary{
		TotalRecords:      len(records),
		UniquePropertyIDs: len(propertyIDs),
		UniquePoles:       len(poles),
		UniqueAddresses:   len(addresses),
		StatusBreakdown:   breakdown,
	}
}
