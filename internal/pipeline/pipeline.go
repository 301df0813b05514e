package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ghdsi/case-slicer/internal/aggregate"
	"github.com/ghdsi/case-slicer/internal/artifact"
	"github.com/ghdsi/case-slicer/internal/countries"
	"github.com/ghdsi/case-slicer/internal/domain"
	"github.com/ghdsi/case-slicer/internal/linelist"
	"github.com/ghdsi/case-slicer/internal/locinfo"
	"github.com/ghdsi/case-slicer/internal/observability"
	"github.com/ghdsi/case-slicer/internal/store"
)

// Output layout under the output directory.
const (
	DailyDir             = "d"
	CountryDir           = "c"
	LocationInfoFileName = "location_info.data"
)

// FeedOpener opens an upstream feed by URL or path.
type FeedOpener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, error)
}

// SlicePublisher receives the daily slices of a run after they are written.
type SlicePublisher interface {
	PublishSlices(ctx context.Context, runID string, slices []artifact.DailySlice) error
}

// RunRecorder persists the outcome of a run.
type RunRecorder interface {
	RecordRun(ctx context.Context, r store.Run) error
}

// Options configure a run.
type Options struct {
	LineListSource   string
	CumulativeSource string // empty skips the cumulative feed
	OutputDir        string
	Overwrite        bool
	Workers          int
	Excluded         []string
}

// Deps are the collaborators of a run. Geocoder, Publisher and Recorder are
// optional.
type Deps struct {
	Feeds     FeedOpener
	Countries *countries.Table
	Geocoder  domain.Geocoder
	Publisher SlicePublisher
	Recorder  RunRecorder
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	Clock     clockwork.Clock
}

// Pipeline runs one batch: fetch, clean, aggregate, slice, write.
type Pipeline struct {
	deps  Deps
	opts  Options
	ready atomic.Bool
}

// New creates a Pipeline. A zero Workers value means one worker.
func New(deps Deps, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{deps: deps, opts: opts}
}

// CheckReadiness returns nil once the upstream feeds have been loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("upstream feeds not loaded yet")
	}
	return nil
}

// Run executes the batch. Worker failures abort the run; files written before
// the failure are left in place.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), StartedAt: p.deps.Clock.Now()}
	log := p.deps.Logger.With("run_id", sum.RunID)
	log.Info("run started", "workers", p.opts.Workers, "output_dir", p.opts.OutputDir, "overwrite", p.opts.Overwrite)

	p.deps.Metrics.PipelineRunning.Set(1)
	defer p.deps.Metrics.PipelineRunning.Set(0)

	err := p.run(ctx, log, &sum)
	sum.FinishedAt = p.deps.Clock.Now()
	p.deps.Metrics.RunDuration.Observe(sum.Duration().Seconds())
	p.record(ctx, log, sum, err)

	if err != nil {
		log.Error("run failed", "error", err, "duration", sum.Duration())
		return sum, err
	}
	log.Info("run finished",
		"duration", sum.Duration(),
		"slices_written", sum.SlicesWritten,
		"slices_skipped", sum.SlicesSkipped,
		"countries_written", sum.CountriesWritten,
		"countries_skipped", sum.CountriesSkipped,
		"unknown_countries", len(sum.UnknownCountries),
	)
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, sum *Summary) error {
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	in, err := p.loadFeeds(ctx, log)
	if err != nil {
		return err
	}
	p.ready.Store(true)
	sum.LineListRead = len(in.lineList)
	if in.cumulative != nil {
		sum.CumulativeLocations = len(in.cumulative.Places())
	}

	records := p.clean(log, in.lineList, sum)
	if err := ctx.Err(); err != nil {
		return err
	}

	compiler, err := p.writeLocationInfo(ctx, log, records, in)
	if err != nil {
		return err
	}
	sum.Locations = compiler.Len()

	newCases := aggregate.FromRecords(records)
	if in.cumulative != nil {
		newCases = aggregate.Merge(newCases, in.cumulative.Matrix())
	}
	sum.Dates = newCases.Len()
	sum.ClampedCells = newCases.ClampedCells()
	p.deps.Metrics.ClampedCells.Add(float64(sum.ClampedCells))
	if sum.ClampedCells > 0 {
		log.Warn("negative cumulative differences clamped to zero", "cells", sum.ClampedCells)
	}

	if err := p.dailySlices(ctx, log, newCases, sum); err != nil {
		return err
	}

	unknown, err := p.countrySlices(ctx, log, records, sum)
	if err != nil {
		return err
	}

	sum.UnknownCountries = mergeSorted(compiler.UnknownCountries(), unknown)
	p.deps.Metrics.UnknownCountries.Add(float64(len(sum.UnknownCountries)))
	return nil
}

func (p *Pipeline) clean(log *slog.Logger, raws []domain.RawCaseRecord, sum *Summary) []domain.CaseRecord {
	defer p.stage("clean")()

	cleaner := linelist.NewCleaner(p.opts.Excluded, p.deps.Clock)
	records, report := cleaner.Clean(raws)

	sum.RecordsKept = report.Kept
	sum.Rejected = report.Rejected
	for _, reason := range linelist.Reasons {
		n := report.Rejected[reason]
		if n == 0 {
			continue
		}
		p.deps.Metrics.RecordsRejected.WithLabelValues(string(reason)).Add(float64(n))
		log.Info("line-list rows rejected", "reason", reason, "count", n, "example", report.Samples[reason].Value)
	}
	log.Info("line list cleaned", "read", report.Read, "kept", report.Kept, "rejected", report.RejectedTotal())
	return records
}

func (p *Pipeline) writeLocationInfo(ctx context.Context, log *slog.Logger, records []domain.CaseRecord, in inputs) (*locinfo.Compiler, error) {
	defer p.stage("location_info")()

	compiler := locinfo.NewCompiler(p.deps.Countries, p.deps.Geocoder, log)
	compiler.AddRecords(ctx, records)
	if in.cumulative != nil {
		compiler.AddPlaces(ctx, in.cumulative.Places())
	}
	if err := compiler.WriteFile(filepath.Join(p.opts.OutputDir, LocationInfoFileName)); err != nil {
		return nil, err
	}
	p.deps.Metrics.ArtifactsWritten.WithLabelValues("location_info").Inc()
	return compiler, nil
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, sum Summary, runErr error) {
	if p.deps.Recorder == nil {
		return
	}
	run := sum.Run()
	if runErr != nil {
		run.Status = store.StatusFailed
		run.Error = runErr.Error()
	}
	// Record even when the run was cancelled.
	if err := p.deps.Recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("record run failed", "error", err)
	}
}

// stage starts a stage timer; call the returned func when the stage ends.
func (p *Pipeline) stage(name string) func() {
	start := p.deps.Clock.Now()
	return func() {
		p.deps.Metrics.StageDuration.WithLabelValues(name).Observe(p.deps.Clock.Since(start).Seconds())
	}
}

func mergeSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Summary describes a finished run.
type Summary struct {
	RunID               string
	StartedAt           time.Time
	FinishedAt          time.Time
	LineListRead        int
	CumulativeLocations int
	RecordsKept         int
	Rejected            map[linelist.Reason]int
	Locations           int
	Dates               int
	SlicesWritten       int
	SlicesSkipped       int
	SlicesPublished     int
	CountriesWritten    int
	CountriesSkipped    int
	UnknownCountries    []string
	ClampedCells        int
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

// RejectedTotal returns the number of line-list rows dropped by the cleaner.
func (s Summary) RejectedTotal() int {
	n := 0
	for _, v := range s.Rejected {
		n += v
	}
	return n
}

// Run converts the summary into a ledger row.
func (s Summary) Run() store.Run {
	return store.Run{
		ID:               s.RunID,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		Status:           store.StatusSucceeded,
		RecordsRead:      s.LineListRead,
		RecordsKept:      s.RecordsKept,
		RecordsRejected:  s.RejectedTotal(),
		Locations:        s.Locations,
		SlicesWritten:    s.SlicesWritten,
		SlicesSkipped:    s.SlicesSkipped,
		CountriesWritten: s.CountriesWritten,
		CountriesSkipped: s.CountriesSkipped,
		UnknownCountries: len(s.UnknownCountries),
		ClampedCells:     s.ClampedCells,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("run %s: %d/%d records kept, %d locations, %d dates, %d slices written (%d skipped), %d countries written (%d skipped)",
		s.RunID, s.RecordsKept, s.LineListRead, s.Locations, s.Dates,
		s.SlicesWritten, s.SlicesSkipped, s.CountriesWritten, s.CountriesSkipped)
}
