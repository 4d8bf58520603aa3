// Package ingest implements the batch reconciliation pipeline: it
// streams a field export into the staging store, claims first-instance
// milestones against the permanent ledger, appends the audit trail, and
// produces a verification report per batch.
package ingest

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/velocityfibre/fieldsync/internal/config"
	"github.com/velocityfibre/fieldsync/internal/model"
	"github.com/velocityfibre/fieldsync/internal/reader"
	"github.com/velocityfibre/fieldsync/internal/store"
)

// Pipeline processes one export file per Run. The design assumes a
// single batch runs at a time; the store operations are nevertheless
// conditional single-statement writes, so overlapping runs cannot
// double-claim a first instance or reuse a version.
type Pipeline struct {
	cfg   config.IngestConfig
	store store.Store
	rng   *rand.Rand
	now   func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRand injects the random source used for spot-check sampling.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) { p.rng = rng }
}

// WithClock injects the time source used for batch ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a Pipeline over the given store.
func New(cfg config.IngestConfig, st store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		store: st,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one export file as one batch and returns the persisted
// verification report.
//
// A batch is not atomic: each record's staging write commits
// independently, so a hard failure partway through leaves
// already-applied records committed and the batch marked failed.
// Re-running the same file is safe: upserts are keyed by property id
// and ledger claims are conditional inserts, so nothing is
// double-counted.
func (p *Pipeline) Run(ctx context.Context, filePath string) (*model.VerificationReport, error) {
	fileName := filepath.Base(filePath)
	batchID := p.newBatchID()

	log := zap.L().With(zap.String("batch_id", batchID), zap.String("file", fileName))
	log.Info("starting import batch")

	if _, err := p.store.CreateBatch(ctx, batchID, fileName); err != nil {
		return nil, eris.Wrap(err, "ingest: create batch")
	}

	report, err := p.run(ctx, batchID, filePath, fileName, log)
	if err != nil {
		p.fail(ctx, batchID, err, log)
		return nil, err
	}

	log.Info("import batch completed",
		zap.Int("total", report.Summary.TotalRecords),
		zap.Int("new", report.Summary.NewRecords),
		zap.Int("updated", report.Summary.DuplicateRecords),
		zap.Bool("verification_passed", report.Summary.VerificationPassed),
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, batchID, filePath, fileName string, log *zap.Logger) (*model.VerificationReport, error) {
	var delim rune
	if runes := []rune(p.cfg.CSVDelimiter); len(runes) > 0 {
		delim = runes[0]
	}
	records, err := reader.ReadAll(ctx, filePath, reader.Options{Delimiter: delim})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read file")
	}
	if len(records) == 0 {
		return nil, eris.Errorf("ingest: %s contains no records", fileName)
	}
	log.Info("file parsed", zap.Int("records", len(records)))

	// The verification phases are read-only over the materialized
	// batch; run them concurrently. Spot checks probe pre-import state.
	var (
		spots       []model.SpotCheck
		counts      model.CountSummary
		constraints model.ConstraintResults
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spots, err = SpotChecks(gctx, records, p.store, p.cfg.SpotCheckSamples, p.rng)
		return err
	})
	g.Go(func() error {
		counts = CountVerification(records)
		return nil
	})
	g.Go(func() error {
		constraints = ValidateConstraints(records, p.cfg)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: verification phase")
	}

	summary := model.ReportSummary{TotalRecords: len(records)}
	var (
		newPoles      []model.NewPole
		statusChanges []model.StatusChange
		redFlags      []string
	)

	for i, rec := range records {
		propertyID := rec.PropertyID()
		if propertyID == "" {
			redFlags = append(redFlags, "record without property id skipped")
			continue
		}

		trackingID := model.ResolveTrackingID(rec)
		normStatus := model.NormalizeStatus(rec.Status())
		bucket := model.StatusBucket(rec.Status())

		// Only pole-identified records claim first instances: drop,
		// GPS, and address identifiers are proxies, not the
		// authoritative asset. Claims key on the status bucket, so
		// "Pole Permission" and "pole permission: approved" contend
		// for the same entry.
		isFirst := false
		if trackingID.Type == model.TrackingPole && bucket != "" {
			isFirst, err = p.store.ClaimFirstInstance(ctx, trackingID.Value, bucket, propertyID, batchID)
			if err != nil {
				return nil, eris.Wrap(err, "ingest: claim first instance")
			}
		}

		res, err := p.store.Upsert(ctx, propertyID, trackingID.Value, rec, batchID)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: stage record")
		}

		changeType := model.ChangeUpdate
		if res.Created {
			changeType = model.ChangeNew
			summary.NewRecords++
			if pole := rec.PoleNumber(); pole != "" {
				newPoles = append(newPoles, model.NewPole{
					Pole:            pole,
					Address:         rec.Address(),
					Status:          rec.Status(),
					IsFirstInstance: isFirst,
				})
			}
		} else {
			summary.DuplicateRecords++
			if old := res.Previous.Status(); old != rec.Status() {
				statusChanges = append(statusChanges, model.StatusChange{
					PropertyID: propertyID,
					Pole:       rec.PoleNumber(),
					OldStatus:  old,
					NewStatus:  rec.Status(),
				})
			}
		}

		if isFirst {
			countFirstInstance(&summary, bucket)
		}
		if strings.Contains(normStatus, "home signup") && rec.DropNumber() != "" {
			summary.TotalHomeSignups++
		}

		if err := p.store.Append(ctx, model.ChangeEntry{
			NaturalKey:      propertyID,
			BatchID:         batchID,
			ChangeType:      changeType,
			ChangedAt:       p.now().UTC(),
			Snapshot:        rec,
			IsFirstInstance: isFirst,
		}); err != nil {
			return nil, eris.Wrap(err, "ingest: append history")
		}

		if (i+1)%100 == 0 {
			log.Info("processing records", zap.Int("processed", i+1), zap.Int("total", len(records)))
		}
	}

	summary.VerificationPassed = constraints.AllPassed() && len(redFlags) == 0

	report := &model.VerificationReport{
		BatchID:       batchID,
		FileName:      fileName,
		GeneratedAt:   p.now().UTC(),
		Summary:       summary,
		SpotChecks:    spots,
		Counts:        counts,
		Constraints:   constraints,
		NewPoles:      newPoles,
		StatusChanges: statusChanges,
		RedFlags:      redFlags,
	}

	// The report must be persisted before the batch can complete.
	if err := p.store.SaveReport(ctx, report); err != nil {
		return nil, eris.Wrap(err, "ingest: save report")
	}
	path, err := WriteReportFile(p.cfg.ReportsDir, batchID, FormatReport(report))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: write report file")
	}
	log.Info("report written", zap.String("path", path))

	if err := p.store.CompleteBatch(ctx, batchID, store.BatchCounters{
		TotalRecords:       summary.TotalRecords,
		NewRecords:         summary.NewRecords,
		DuplicateCount:     summary.DuplicateRecords,
		VerificationPassed: summary.VerificationPassed,
	}); err != nil {
		return nil, eris.Wrap(err, "ingest: complete batch")
	}

	return report, nil
}

// fail transitions the batch to failed with the fatal error's message.
// Failed batches are not retried automatically; the operator re-runs
// the same file.
func (p *Pipeline) fail(ctx context.Context, batchID string, cause error, log *zap.Logger) {
	log.Error("import batch failed", zap.Error(cause))
	if err := p.store.FailBatch(ctx, batchID, cause.Error()); err != nil {
		log.Error("mark batch failed", zap.Error(err))
	}
}

// newBatchID builds a sortable, greppable batch id. The random suffix
// keeps ids unique when batches start within the same second.
func (p *Pipeline) newBatchID() string {
	return "IMP_" + p.now().UTC().Format("20060102-150405") + "_" + uuid.New().String()[:8]
}

// countFirstInstance sorts a first-ever (pole, status bucket)
// observation into its milestone counter.
func countFirstInstance(s *model.ReportSummary, bucket string) {
	switch {
	case strings.Contains(bucket, "pole permission"):
		s.FirstPolePermissions++
	case strings.Contains(bucket, "pole planted"), strings.Contains(bucket, "installed"):
		s.FirstPolesPlanted++
	case strings.Contains(bucket, "home signup"):
		s.FirstHomeSignups++
	case strings.Contains(bucket, "home install"):
		s.FirstHomeInstalls++
	}
}
