package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ghdsi/case-slicer/internal/aggregate"
	"github.com/ghdsi/case-slicer/internal/artifact"
	"github.com/ghdsi/case-slicer/internal/domain"
)

// progressEvery controls how often serial writes log progress.
const progressEvery = 50

// dailySlices builds one slice per date on the worker pool, writes them in
// date order and rewrites the index after every write. The newest date is
// written as latest.json.
func (p *Pipeline) dailySlices(ctx context.Context, log *slog.Logger, newCases *aggregate.Matrix, sum *Summary) error {
	slices, err := p.buildDaily(ctx, newCases)
	if err != nil {
		return err
	}

	defer p.stage("write_daily")()

	w, err := artifact.NewWriter(filepath.Join(p.opts.OutputDir, DailyDir), p.opts.Overwrite, log)
	if err != nil {
		return err
	}
	index := artifact.NewIndex(w.Path(artifact.IndexFileName))

	for i, slice := range slices {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := artifact.DailyFileName(slice.Date, i == len(slices)-1)
		written, err := w.Write(name, slice)
		if err != nil {
			return err
		}
		if written {
			sum.SlicesWritten++
			p.deps.Metrics.ArtifactsWritten.WithLabelValues("daily").Inc()
		} else {
			sum.SlicesSkipped++
			p.deps.Metrics.ArtifactsSkipped.WithLabelValues("daily").Inc()
		}
		if err := index.Add(name); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 {
			log.Info("daily slices progress", "done", i+1, "total", len(slices))
		}
	}
	log.Info("daily slices written", "written", sum.SlicesWritten, "skipped", sum.SlicesSkipped, "dir", w.Dir())

	return p.publish(ctx, log, sum, slices)
}

// buildDaily pairs each date's new counts with its running totals. The result
// is in ascending date order.
func (p *Pipeline) buildDaily(ctx context.Context, newCases *aggregate.Matrix) ([]artifact.DailySlice, error) {
	defer p.stage("build_daily")()

	totals := newCases.Cumulative()
	geoIDs := newCases.GeoIDs()
	slices := make([]artifact.DailySlice, newCases.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := 0; i < newCases.Len(); i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slice, err := artifact.BuildDaily(geoIDs, newCases.Row(i), totals.Row(i))
			if err != nil {
				return err
			}
			slices[i] = slice
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build daily slices: %w", err)
	}
	return slices, nil
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, sum *Summary, slices []artifact.DailySlice) error {
	if p.deps.Publisher == nil || len(slices) == 0 {
		return nil
	}
	defer p.stage("publish")()

	if err := p.deps.Publisher.PublishSlices(ctx, sum.RunID, slices); err != nil {
		return fmt.Errorf("publish daily slices: %w", err)
	}
	sum.SlicesPublished = len(slices)
	p.deps.Metrics.SlicesPublished.Add(float64(len(slices)))
	log.Info("daily slices published", "count", len(slices))
	return nil
}

// countrySlices writes one file per ISO code holding that country's new
// counts. Records whose country is blank or not in the table are skipped;
// the unknown names are returned sorted.
func (p *Pipeline) countrySlices(ctx context.Context, log *slog.Logger, records []domain.CaseRecord, sum *Summary) ([]string, error) {
	groups, unknown := p.groupByCountry(log, records)

	codes := make([]string, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	built, err := p.buildCountries(ctx, codes, groups)
	if err != nil {
		return nil, err
	}

	defer p.stage("write_country")()

	w, err := artifact.NewWriter(filepath.Join(p.opts.OutputDir, CountryDir), p.opts.Overwrite, log)
	if err != nil {
		return nil, err
	}
	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		written, err := w.Write(artifact.CountryFileName(code), built[i])
		if err != nil {
			return nil, err
		}
		if written {
			sum.CountriesWritten++
			p.deps.Metrics.ArtifactsWritten.WithLabelValues("country").Inc()
		} else {
			sum.CountriesSkipped++
			p.deps.Metrics.ArtifactsSkipped.WithLabelValues("country").Inc()
		}
	}
	log.Info("country slices written", "written", sum.CountriesWritten, "skipped", sum.CountriesSkipped, "dir", w.Dir())
	return unknown, nil
}

// groupByCountry partitions records by resolved ISO code. Names that resolve
// to the same code share a group.
func (p *Pipeline) groupByCountry(log *slog.Logger, records []domain.CaseRecord) (map[string][]domain.CaseRecord, []string) {
	groups := make(map[string][]domain.CaseRecord)
	resolved := make(map[string]string)
	unknownSet := make(map[string]struct{})

	for _, r := range records {
		name := domain.Blank(r.Country)
		if name == "" {
			continue
		}
		code, seen := resolved[name]
		if !seen {
			var err error
			code, err = p.deps.Countries.ResolveCode(name)
			if err != nil {
				log.Warn("unknown country, skipping its records", "country", name)
				unknownSet[name] = struct{}{}
				code = ""
			}
			resolved[name] = code
		}
		if code == "" {
			continue
		}
		groups[code] = append(groups[code], r)
	}

	unknown := make([]string, 0, len(unknownSet))
	for name := range unknownSet {
		unknown = append(unknown, name)
	}
	sort.Strings(unknown)
	return groups, unknown
}

func (p *Pipeline) buildCountries(ctx context.Context, codes []string, groups map[string][]domain.CaseRecord) ([]artifact.CountrySlice, error) {
	defer p.stage("build_country")()

	built := make([]artifact.CountrySlice, len(codes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, code := range codes {
		records := groups[code]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			built[i] = artifact.BuildCountry(aggregate.FromRecords(records))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build country slices: %w", err)
	}
	return built, nil
}
