package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ghdsi/case-slicer/internal/domain"
	"github.com/ghdsi/case-slicer/internal/feed"
)

// inputs are the decoded upstream feeds of one run.
type inputs struct {
	lineList   []domain.RawCaseRecord
	cumulative *feed.CumulativeSeries // nil when no cumulative source is configured
}

// loadFeeds fetches and decodes both feeds. Any failure is fatal to the run.
func (p *Pipeline) loadFeeds(ctx context.Context, log *slog.Logger) (inputs, error) {
	defer p.stage("fetch")()

	var in inputs

	rc, err := p.deps.Feeds.Open(ctx, p.opts.LineListSource)
	if err != nil {
		return in, fmt.Errorf("line list: %w", err)
	}
	in.lineList, err = feed.ReadLineList(rc)
	_ = rc.Close()
	if err != nil {
		return in, fmt.Errorf("line list: %w", err)
	}
	p.deps.Metrics.RecordsRead.WithLabelValues("linelist").Add(float64(len(in.lineList)))
	log.Info("line list loaded", "source", p.opts.LineListSource, "rows", len(in.lineList))

	if p.opts.CumulativeSource == "" {
		log.Info("no cumulative source configured")
		return in, nil
	}

	rc, err = p.deps.Feeds.Open(ctx, p.opts.CumulativeSource)
	if err != nil {
		return in, fmt.Errorf("cumulative feed: %w", err)
	}
	in.cumulative, err = feed.ReadCumulative(rc)
	_ = rc.Close()
	if err != nil {
		return in, fmt.Errorf("cumulative feed: %w", err)
	}
	p.deps.Metrics.RecordsRead.WithLabelValues("cumulative").Add(float64(len(in.cumulative.Places())))
	log.Info("cumulative feed loaded",
		"source", p.opts.CumulativeSource,
		"locations", len(in.cumulative.Places()),
		"dates", len(in.cumulative.Dates()),
		"dropped", in.cumulative.Dropped,
	)
	return in, nil
}
