package ingest

import (
	"sort"

	"github.com/velocityfibre/fieldsync/internal/config"
	"github.com/velocityfibre/fieldsync/internal/model"
)

// ValidateConstraints runs the three whole-batch business checks:
// drops-per-pole capacity, GPS geofence, and conflicting statuses per
// pole. Field data is noisy and arrives faster than it can be
// corrected, so violations are findings for human review and never
// block staging.
func ValidateConstraints(records []model.Record, cfg config.IngestConfig) model.ConstraintResults {
	dropsPerPole := make(map[string]map[string]struct{})
	statusesPerPole := make(map[string]map[string]struct{})
	var gpsViolations []model.GeofenceViolation

	for _, rec := range records {
		pole := rec.PoleNumber()

		if drop := rec.DropNumber(); pole != "" && drop != "" {
			if dropsPerPole[pole] == nil {
				dropsPerPole[pole] = make(map[string]struct{})
			}
			dropsPerPole[pole][drop] = struct{}{}
		}

		if lat, lng, ok := rec.Coordinates(); ok && !cfg.Bounds.Contains(lat, lng) {
			gpsViolations = append(gpsViolations, model.GeofenceViolation{
				PropertyID: rec.PropertyID(),
				Pole:       pole,
				Latitude:   lat,
				Longitude:  lng,
				Address:    rec.Address(),
			})
		}

		// Statuses are compared by bucket so phrasing variants and
		// ":<qualifier>" suffixes of the same milestone don't count
		// as a conflict.
		if bucket := model.StatusBucket(rec.Status()); pole != "" && bucket != "" {
			if statusesPerPole[pole] == nil {
				statusesPerPole[pole] = make(map[string]struct{})
			}
			statusesPerPole[pole][bucket] = struct{}{}
		}
	}

	var capViolations []model.CapacityViolation
	for pole, drops := range dropsPerPole {
		if len(drops) > cfg.MaxDropsPerPole {
			capViolations = append(capViolations, model.CapacityViolation{
				Pole:      pole,
				DropCount: len(drops),
				Limit:     cfg.MaxDropsPerPole,
			})
		}
	}
	sort.Slice(capViolations, func(i, j int) bool { return capViolations[i].Pole < capViolations[j].Pole })

	var conflicts []model.StatusConflict
	for pole, statuses := range statusesPerPole {
		if len(statuses) > 1 {
			list := make([]string, 0, len(statuses))
			for s := range statuses {
				list = append(list, s)
			}
			sort.Strings(list)
			conflicts = append(conflicts, model.StatusConflict{Pole: pole, Statuses: list})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Pole < conflicts[j].Pole })

	return model.ConstraintResults{
		Capacity:       model.CapacityCheck{Passed: len(capViolations) == 0, Violations: capViolations},
		Geofence:       model.GeofenceCheck{Passed: len(gpsViolations) == 0, Violations: gpsViolations},
		StatusConflict: model.StatusConflictCheck{Passed: len(conflicts) == 0, Violations: conflicts},
	}
}
