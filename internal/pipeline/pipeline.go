// Package pipeline orchestrates a full load run: read each entity's source
// in referential order, transform and validate every record, stage accepted
// rows through the incremental loader, and record every rejection. The run
// is summarized in the load_runs table whether it completes or aborts.
package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/loader"
	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
	"github.com/sells-group/crm-etl/internal/resolver"
	"github.com/sells-group/crm-etl/internal/source"
	"github.com/sells-group/crm-etl/internal/store"
	"github.com/sells-group/crm-etl/internal/transform"
)

// Options configures one load run.
type Options struct {
	// SourceDir holds the input files, one per entity
	// (companies.csv, contacts.json, ...).
	SourceDir string
	// ErrorDir receives the per-entity rejection reports.
	ErrorDir string
	// BatchSize bounds how many records are read from a source at once.
	BatchSize int
	// FlushSize bounds how many validated rows are staged before a bulk
	// insert.
	FlushSize int
}

// Pipeline runs loads against one store.
type Pipeline struct {
	store store.Store
	opts  Options
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Pipeline.
func New(st store.Store, opts Options) *Pipeline {
	return &Pipeline{
		store: st,
		opts:  opts,
		log:   zap.L().With(zap.String("component", "pipeline")),
		now:   time.Now,
	}
}

// Run executes one load in referential order and returns its summary. The
// summary is persisted even when the run fails; a missing source file skips
// that entity rather than failing the run. Only a fatal store error aborts —
// and then only after flushing the rejections collected so far.
func (p *Pipeline) Run(ctx context.Context) (*model.RunSummary, error) {
	run := model.NewRunSummary(uuid.NewString(), p.now().UTC())
	if err := p.store.CreateRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	p.log.Info("run started", zap.String("run_id", run.ID))

	reporter := report.New(p.opts.ErrorDir)
	runErr := p.load(ctx, run, reporter)

	// Rejections collected before a fatal abort still get reported.
	if err := reporter.Flush(context.WithoutCancel(ctx)); err != nil {
		p.log.Warn("error report flush interrupted", zap.Error(err))
	}

	completed := p.now().UTC()
	run.CompletedAt = &completed
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = eris.ToString(runErr, false)
	} else {
		run.Status = model.RunStatusComplete
	}
	if err := p.store.CompleteRun(context.WithoutCancel(ctx), run); err != nil {
		p.log.Warn("cannot record run completion", zap.String("run_id", run.ID), zap.Error(err))
	}

	for _, entity := range model.LoadOrder {
		c := run.Counts(entity)
		p.log.Info("entity summary",
			zap.String("run_id", run.ID),
			zap.String("entity", string(entity)),
			zap.Int("processed", c.Processed),
			zap.Int("loaded", c.Loaded),
			zap.Int("skipped", c.Skipped),
			zap.Int("rejected", c.Rejected))
	}
	if runErr != nil {
		return run, runErr
	}
	p.log.Info("run complete", zap.String("run_id", run.ID))
	return run, nil
}

func (p *Pipeline) load(ctx context.Context, run *model.RunSummary, reporter *report.Reporter) error {
	dims := resolver.New(p.store)
	if err := dims.Prime(ctx); err != nil {
		return err
	}
	ldr := loader.New(p.store, reporter, p.opts.FlushSize)
	if err := ldr.Prime(ctx); err != nil {
		return err
	}
	unique := transform.NewUniqueIndex()
	if err := unique.Prime(ctx, p.store); err != nil {
		return err
	}
	tr := transform.New(dims, ldr, unique)

	for _, entity := range model.LoadOrder {
		if err := p.loadEntity(ctx, entity, run, tr, ldr, reporter); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) loadEntity(
	ctx context.Context,
	entity model.EntityType,
	run *model.RunSummary,
	tr *transform.Transformer,
	ldr *loader.Loader,
	reporter *report.Reporter,
) error {
	path, err := source.Locate(p.opts.SourceDir, entity)
	if errors.Is(err, source.ErrNoSource) {
		p.log.Warn("no source file, skipping entity", zap.String("entity", string(entity)))
		return nil
	}
	if err != nil {
		return err
	}

	r, err := source.Open(path, entity, p.opts.BatchSize)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck

	p.log.Info("loading entity",
		zap.String("entity", string(entity)),
		zap.String("source", path))

	counts := run.Counts(entity)
	rejectedBefore := reporter.Count(entity)
	for {
		batch, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrapf(err, "pipeline: read %s batch", entity)
		}
		for _, rec := range batch {
			counts.Processed++
			if err := p.loadRecord(ctx, entity, rec, tr, ldr, reporter); err != nil {
				return err
			}
		}
	}

	if err := ldr.Flush(ctx, entity); err != nil {
		return err
	}
	counts.Loaded = ldr.Loaded(entity)
	counts.Skipped = ldr.Skipped(entity)
	counts.Rejected = reporter.Count(entity) - rejectedBefore
	return nil
}

func (p *Pipeline) loadRecord(
	ctx context.Context,
	entity model.EntityType,
	rec model.RawRecord,
	tr *transform.Transformer,
	ldr *loader.Loader,
	reporter *report.Reporter,
) error {
	recordID := strings.TrimSpace(rec["id"])
	if ldr.SkipIfLoaded(entity, recordID) {
		return nil
	}

	var (
		failures []model.Failure
		err      error
	)
	switch entity {
	case model.EntityCompanies:
		var row *model.Company
		row, failures, err = tr.Company(ctx, rec)
		if err == nil && row != nil {
			err = ldr.AddCompany(ctx, *row)
		}
	case model.EntityContacts:
		var row *model.Contact
		row, failures, err = tr.Contact(ctx, rec)
		if err == nil && row != nil {
			err = ldr.AddContact(ctx, *row)
		}
	case model.EntityOpportunities:
		var row *model.Opportunity
		row, failures, err = tr.Opportunity(ctx, rec)
		if err == nil && row != nil {
			err = ldr.AddOpportunity(ctx, *row)
		}
	case model.EntityActivities:
		var row *model.Activity
		row, failures, err = tr.Activity(ctx, rec)
		if err == nil && row != nil {
			err = ldr.AddActivity(ctx, *row)
		}
	default:
		return eris.Errorf("pipeline: unknown entity %q", entity)
	}
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		reporter.Record(entity, recordID, failures)
	}
	return nil
}
