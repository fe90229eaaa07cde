package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/fsutil"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

// stageCommit moves the staged export and maps into place.
const stageCommit = "commit"

// Fetcher retrieves the raw source files.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.RawRecordSet, error)
}

// Exporter writes the table to a columnar file and reads it back.
type Exporter interface {
	Export(ctx context.Context, t domain.CrashTable, path string) (int64, error)
	Read(path string) (domain.ExportedTable, error)
}

// MapRenderer builds map views in memory and stages them next to their
// final paths.
type MapRenderer interface {
	Build(ctx context.Context, table domain.ExportedTable, spec domain.ViewSpec) (domain.MapArtifact, error)
	Stage(a domain.MapArtifact) (string, error)
}

// Publisher sends exported records downstream.
type Publisher interface {
	Publish(ctx context.Context, records []domain.CrashRecord, exportedAt time.Time) (int, error)
}

// Stages wires the pipeline's components. Enricher and Publisher are optional.
type Stages struct {
	Fetcher   Fetcher
	Cleaner   *Cleaner
	Enricher  *Enricher
	Exporter  Exporter
	Maps      MapRenderer
	Publisher Publisher
}

// Options are the per-run settings.
type Options struct {
	ExportPath string
	MinRows    int
	Views      []domain.ViewSpec
	// Progress, when set, is called as each stage starts.
	Progress func(stage string)
}

// StageError wraps the first fatal error of a run with the stage it came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs fetch, clean, validate, transform, export, render and publish
// in order, stopping at the first failure. A failed run leaves the previous
// export and maps in place.
type Pipeline struct {
	stages  Stages
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu   sync.Mutex
	last *Report
}

// New creates a Pipeline with the given stages and observability.
func New(stages Stages, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		stages:  stages,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a successful run yet")
	}
	return nil
}

// LastReport returns the report of the most recent run.
func (p *Pipeline) LastReport() (Report, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

// LastStatus implements httpadapter.StatusProvider.
func (p *Pipeline) LastStatus() (any, bool) {
	r, ok := p.LastReport()
	return r, ok
}

// Run executes one full pass. The returned report is filled in as far as the
// run got, also on failure.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: domain.Now()}
	logger := p.logger.With("run_id", report.RunID)

	logger.Info("pipeline started", "export_path", p.opts.ExportPath, "views", len(p.opts.Views))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx, logger, &report)
	report.FinishedAt = domain.Now()

	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			report.FailedStage = se.Stage
			p.metrics.StageFailures.WithLabelValues(se.Stage).Inc()
		}
		report.Error = err.Error()
		p.metrics.RunsTotal.WithLabelValues("failure").Inc()
		logger.Error("pipeline failed", "error", err)
		p.remember(report)
		return report, err
	}

	report.Success = true
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(report.FinishedAt.Unix()))
	p.ready.Store(true)
	logger.Info("pipeline finished",
		"kept", report.Stats.Kept,
		"export_bytes", report.ExportBytes,
		"maps", len(report.Artifacts),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	p.remember(report)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, report *Report) error {
	var set domain.RawRecordSet
	err := p.stage(ctx, logger, report, domain.StageFetch, func() (err error) {
		set, err = p.stages.Fetcher.Fetch(ctx)
		return err
	})
	if err != nil {
		return err
	}

	var table domain.CrashTable
	err = p.stage(ctx, logger, report, domain.StageParse, func() (err error) {
		table, err = p.stages.Cleaner.Clean(set)
		return err
	})
	set = domain.RawRecordSet{}
	if err != nil {
		return err
	}
	report.Stats = table.Stats
	p.recordRowMetrics(table.Stats)

	err = p.stage(ctx, logger, report, domain.StageValidate, func() error {
		return p.validate(table)
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, logger, report, domain.StageTransform, func() (err error) {
		table, err = p.stages.Enricher.Enrich(ctx, table)
		return err
	})
	if err != nil {
		return err
	}
	report.Stats = table.Stats

	staging := fsutil.StagingPath(p.opts.ExportPath)
	err = p.stage(ctx, logger, report, domain.StageExport, func() error {
		size, err := p.stages.Exporter.Export(ctx, table, staging)
		report.ExportBytes = size
		return err
	})
	if err != nil {
		p.discard(logger, fsutil.Move{Src: staging})
		return err
	}

	// Every output is staged before the commit so a failing run leaves the
	// previous export and maps in place as a set.
	moves := []fsutil.Move{{Src: staging, Dst: p.opts.ExportPath}}
	var exported domain.ExportedTable
	var artifacts []domain.MapArtifact
	err = p.stage(ctx, logger, report, domain.StageRender, func() (err error) {
		exported, err = p.stages.Exporter.Read(staging)
		if err != nil {
			return &domain.RenderError{Reason: "read staged export", Err: err}
		}
		for _, view := range p.opts.Views {
			a, err := p.stages.Maps.Build(ctx, exported, view)
			if err != nil {
				return err
			}
			staged, err := p.stages.Maps.Stage(a)
			if err != nil {
				return err
			}
			moves = append(moves, fsutil.Move{Src: staged, Dst: a.Path})
			artifacts = append(artifacts, a)
		}
		return nil
	})
	if err != nil {
		p.discard(logger, moves...)
		return err
	}

	err = p.stage(ctx, logger, report, stageCommit, func() error {
		if err := fsutil.ReplaceAll(moves); err != nil {
			return &domain.WriteError{Path: p.opts.ExportPath, Err: err}
		}
		report.ExportPath = p.opts.ExportPath
		p.metrics.ExportBytes.Set(float64(report.ExportBytes))
		for _, a := range artifacts {
			report.Artifacts = append(report.Artifacts, a.Path)
			p.metrics.MapsRendered.Inc()
			logger.Info("map rendered", "attribute", a.Attribute, "path", a.Path, "features", a.Features)
		}
		return nil
	})
	if err != nil {
		p.discard(logger, moves...)
		return err
	}

	if p.stages.Publisher == nil {
		return nil
	}
	return p.stage(ctx, logger, report, domain.StagePublish, func() error {
		n, err := p.stages.Publisher.Publish(ctx, exported.Records, report.StartedAt)
		report.Published = n
		p.metrics.RecordsPublished.Add(float64(n))
		return err
	})
}

// stage times fn, records the outcome in the report and wraps a failure in a
// StageError. A canceled context stops the run before fn is invoked.
func (p *Pipeline) stage(ctx context.Context, logger *slog.Logger, report *Report, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}

	logger.Debug("stage started", "stage", name)
	if p.opts.Progress != nil {
		p.opts.Progress(name)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	result := StageResult{Stage: name, Duration: elapsed}
	if err != nil {
		result.Error = err.Error()
		report.Stages = append(report.Stages, result)
		logger.Error("stage failed", "stage", name, "duration", elapsed, "error", err)
		return &StageError{Stage: name, Err: err}
	}
	report.Stages = append(report.Stages, result)
	logger.Info("stage finished", "stage", name, "duration", elapsed)
	return nil
}

func (p *Pipeline) validate(table domain.CrashTable) error {
	err := domain.Validate(table, p.opts.MinRows, p.stages.Cleaner.Vocabulary())
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		for _, rule := range ve.Rules() {
			p.metrics.ValidationViolations.WithLabelValues(rule).Inc()
		}
	}
	return err
}

func (p *Pipeline) recordRowMetrics(s domain.Stats) {
	p.metrics.RowsParsed.Add(float64(s.RawRows))
	p.metrics.RowsKept.Add(float64(s.Kept))
	p.metrics.RowsFiltered.Add(float64(s.Filtered))
	p.metrics.ValuesCoerced.Add(float64(s.Coerced))
	p.metrics.NullValues.Add(float64(s.NullValues))
	for reason, n := range s.Dropped {
		p.metrics.RowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (p *Pipeline) discard(logger *slog.Logger, staged ...fsutil.Move) {
	for _, m := range staged {
		if err := fsutil.RemoveIfExists(m.Src); err != nil {
			logger.Warn("remove staged file failed", "path", m.Src, "error", err)
		}
	}
}

func (p *Pipeline) remember(r Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &r
}

