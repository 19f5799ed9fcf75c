package finalizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aevon-lab/geosplit/internal/core/groupkey"
	"github.com/aevon-lab/geosplit/internal/core/record"
	"github.com/aevon-lab/geosplit/internal/destination"
	"github.com/aevon-lab/geosplit/internal/metrics"
	"github.com/aevon-lab/geosplit/internal/staging"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 10
	defaultExtension   = "geojson"
)

// Parameter controls one finalization batch.
type Parameter struct {
	Extension   string
	Concurrency int
}

// DefaultParameter returns the defaults used by the CLI.
func DefaultParameter() Parameter {
	return Parameter{
		Extension:   defaultExtension,
		Concurrency: defaultConcurrency,
	}
}

func (p Parameter) normalized() Parameter {
	n := p
	if n.Extension == "" {
		n.Extension = defaultExtension
	}
	if n.Concurrency <= 0 {
		n.Concurrency = defaultConcurrency
	}
	return n
}

// Finalizer turns staging units into one FeatureCollection document per group.
type Finalizer struct {
	store   staging.Store
	sink    destination.Sink
	metrics *metrics.Collector
	param   Parameter
}

// New creates a finalizer reading from store and writing to sink. m may be nil.
func New(store staging.Store, sink destination.Sink, m *metrics.Collector, param Parameter) *Finalizer {
	return &Finalizer{
		store:   store,
		sink:    sink,
		metrics: m,
		param:   param.normalized(),
	}
}

// FinalizeAll writes one document per unit with at most Concurrency tasks in flight and
// returns the number of documents written. The first failing task stops admission of new
// units and its error is returned; tasks already running finish, but the batch fails.
func (f *Finalizer) FinalizeAll(ctx context.Context, units []groupkey.Identifier) (int64, error) {
	total := len(units)
	slog.Info("[Finalizer] Writing documents",
		"groups", total,
		"concurrency", f.param.Concurrency,
		"destination", f.sink.Location(),
	)

	reportEvery := int64(total / 10)
	if reportEvery < 1 {
		reportEvery = 1
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.param.Concurrency)

	for _, id := range units {
		// Go blocks while Concurrency tasks are running, so this check runs right before
		// each admission.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := f.finalize(ctx, id); err != nil {
				return err
			}
			n := written.Add(1)
			f.metrics.DocumentWritten()
			slog.Debug("[Finalizer] Document written", "group", id, "written", n, "total", total)
			if n%reportEvery == 0 || n == int64(total) {
				slog.Info("[Finalizer] Progress", "written", n, "total", total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("[Finalizer] Batch failed", "written", written.Load(), "total", total, "error", err)
		return written.Load(), err
	}
	if err := ctx.Err(); err != nil {
		return written.Load(), err
	}
	return written.Load(), nil
}

// finalize runs the read, assemble and write steps for one unit. The sink write uses the
// caller's context, so a failure in a sibling task does not interrupt it.
func (f *Finalizer) finalize(ctx context.Context, id groupkey.Identifier) error {
	done := f.metrics.FinalizerStarted()
	defer done()

	chunks, err := f.store.ReadAll(id)
	if err != nil {
		return fmt.Errorf("finalize %q: %w", id, err)
	}
	doc, err := record.AssembleCollection(chunks)
	if err != nil {
		return fmt.Errorf("finalize %q: %w", id, err)
	}
	if err := f.sink.Put(ctx, destination.DocumentName(id, f.param.Extension), doc); err != nil {
		return fmt.Errorf("finalize %q: %w", id, err)
	}
	return nil
}
