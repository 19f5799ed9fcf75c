package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/geosplit/internal/core/config"
	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/destination"
	"github.com/aevon-lab/geosplit/internal/filter"
	"github.com/aevon-lab/geosplit/internal/finalizer"
	"github.com/aevon-lab/geosplit/internal/metrics"
	"github.com/aevon-lab/geosplit/internal/partitioner"
	"github.com/aevon-lab/geosplit/internal/source"
	"github.com/aevon-lab/geosplit/internal/staging"
)

// Dependencies overrides the collaborators a run would otherwise build from its config.
// Every field is optional.
type Dependencies struct {
	Reader   source.Reader
	Sink     destination.Sink
	NewStore staging.Factory
	Metrics  *metrics.Collector
}

// Summary describes a finished run.
type Summary struct {
	Documents   int64         `json:"documents"`
	Read        int64         `json:"records_read"`
	Staged      int64         `json:"records_staged"`
	Skipped     int64         `json:"records_skipped"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Destination string        `json:"destination"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Processed %d files in %s\nSaved to %s", s.Documents, s.Elapsed.Round(time.Millisecond), s.Destination)
}

// Run splits one dataset: it streams the source into per-group staging units, writes one
// document per group, and removes the staging workspace exactly once whether or not the
// run succeeds. A failure to remove the workspace is logged and never replaces the run error.
func Run(ctx context.Context, cfg config.Config, deps Dependencies) (summary Summary, err error) {
	start := time.Now()
	defer func() {
		summary.Elapsed = time.Since(start)
		deps.Metrics.RunFinished(coreerr.Kind(err), summary.Elapsed)
		if err != nil {
			slog.Error("[Pipeline] Split failed", "kind", coreerr.Kind(err), "error", err)
		}
	}()

	if err := cfg.ValidateSplit(); err != nil {
		return summary, err
	}
	predicate, err := filter.Resolve(cfg.Filter)
	if err != nil {
		return summary, err
	}

	reader := deps.Reader
	if reader == nil {
		if reader, err = source.NewReader(cfg.Input.Path); err != nil {
			return summary, err
		}
	}
	src, err := reader.Open()
	if err != nil {
		return summary, err
	}
	defer src.Close()

	// The destination is prepared before any staging so that an unwritable destination
	// fails the run without touching the disk.
	sink := deps.Sink
	if sink == nil {
		if sink, err = destination.New(ctx, cfg.Output); err != nil {
			return summary, err
		}
	}
	summary.Destination = sink.Location()

	newStore := deps.NewStore
	if newStore == nil {
		newStore = staging.NewFactory(cfg.Staging)
	}

	slog.Info("[Pipeline] Split started",
		"input", reader.Path(),
		"split_key", cfg.Split.Key,
		"filter", cfg.Filter.Mode,
		"destination", summary.Destination,
	)

	part := partitioner.New(newStore, deps.Metrics, partitioner.Parameter{
		AbsentPolicy:  cfg.Split.AbsentPolicy,
		ProgressEvery: cfg.Progress.Every,
	})
	res, err := part.Run(ctx, src, predicate, cfg.Split.Key)
	if err != nil {
		return summary, err
	}
	defer func() {
		if closeErr := res.Store.Close(); closeErr != nil {
			slog.Error("[Pipeline] Failed to remove staging workspace", "error", closeErr)
		}
	}()
	summary.Read, summary.Staged, summary.Skipped = res.Read, res.Staged, res.Skipped

	fin := finalizer.New(res.Store, sink, deps.Metrics, finalizer.Parameter{
		Extension:   cfg.Output.Extension,
		Concurrency: cfg.Finalize.Concurrency,
	})
	summary.Documents, err = fin.FinalizeAll(ctx, res.Units)
	if err != nil {
		return summary, err
	}

	slog.Info("[Pipeline] Split complete",
		"documents", summary.Documents,
		"records_read", summary.Read,
		"records_skipped", summary.Skipped,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
		"destination", summary.Destination,
	)
	return summary, nil
}
