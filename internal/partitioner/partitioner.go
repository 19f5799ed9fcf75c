package partitioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
	"github.com/aevon-lab/geosplit/internal/core/record"
	"github.com/aevon-lab/geosplit/internal/filter"
	"github.com/aevon-lab/geosplit/internal/metrics"
	"github.com/aevon-lab/geosplit/internal/source"
	"github.com/aevon-lab/geosplit/internal/staging"
)

const defaultProgressEvery = 10000

// Parameter controls one partitioning pass.
type Parameter struct {
	AbsentPolicy groupkey.AbsentPolicy
	// ProgressEvery logs a progress line every N records read. 0 disables it.
	ProgressEvery int
}

// DefaultParameter returns the defaults used by the CLI.
func DefaultParameter() Parameter {
	return Parameter{
		AbsentPolicy:  groupkey.AbsentPerRecord,
		ProgressEvery: defaultProgressEvery,
	}
}

func (p Parameter) normalized() Parameter {
	n := p
	if n.AbsentPolicy == "" {
		n.AbsentPolicy = groupkey.AbsentPerRecord
	}
	if n.ProgressEvery < 0 {
		n.ProgressEvery = 0
	}
	return n
}

// Result is the outcome of a successful pass. The caller owns Store and must Close it.
type Result struct {
	Store staging.Store
	Units []groupkey.Identifier

	Read    int64
	Staged  int64
	Skipped int64
}

// Partitioner streams a source into one staging unit per group.
type Partitioner struct {
	newStore staging.Factory
	metrics  *metrics.Collector
	param    Parameter
}

// New creates a partitioner. m may be nil.
func New(newStore staging.Factory, m *metrics.Collector, param Parameter) *Partitioner {
	return &Partitioner{
		newStore: newStore,
		metrics:  m,
		param:    param.normalized(),
	}
}

// Run makes a single sequential pass over src. Records rejected by predicate are skipped;
// every other record is appended to the unit of its splitKey value, so each unit holds its
// records in arrival order. On any error the store is closed (and its workspace removed)
// before Run returns.
func (p *Partitioner) Run(ctx context.Context, src source.Source, predicate filter.Predicate, splitKey string) (*Result, error) {
	store, err := p.newStore()
	if err != nil {
		return nil, err
	}

	res, err := p.stage(ctx, store, src, predicate, splitKey)
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("[Partitioner] Failed to remove workspace", "error", closeErr)
		}
		return nil, err
	}
	return res, nil
}

func (p *Partitioner) stage(
	ctx context.Context,
	store staging.Store,
	src source.Source,
	predicate filter.Predicate,
	splitKey string,
) (*Result, error) {
	registry := groupkey.NewRegistry(p.param.AbsentPolicy)
	res := &Result{Store: store}

	slog.Info("[Partitioner] Staging records", "split_key", splitKey, "absent_policy", p.param.AbsentPolicy)

	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", res.Read, err)
		}
		res.Read++
		p.metrics.RecordRead()

		if predicate != nil && !predicate(rec) {
			res.Skipped++
			p.metrics.RecordSkipped()
			continue
		}

		if err := p.append(store, registry, rec, splitKey, res.Read-1); err != nil {
			return nil, err
		}
		res.Staged++
		p.metrics.RecordStaged()

		if p.param.ProgressEvery > 0 && res.Read%int64(p.param.ProgressEvery) == 0 {
			slog.Info("[Partitioner] Progress", "read", res.Read, "staged", res.Staged, "groups", registry.Len())
		}
	}

	units, err := store.Units()
	if err != nil {
		return nil, err
	}
	res.Units = units

	slog.Info("[Partitioner] Staging complete",
		"read", res.Read,
		"staged", res.Staged,
		"skipped", res.Skipped,
		"groups", len(units),
	)
	return res, nil
}

func (p *Partitioner) append(store staging.Store, registry *groupkey.Registry, rec record.Record, splitKey string, index int64) error {
	// A record that cannot be serialized (NaN coordinates, say) is as broken as one that
	// cannot be decoded.
	chunk, err := record.Encode(rec)
	if err != nil {
		return &coreerr.DecodeError{Index: index, Err: err}
	}
	id := registry.Resolve(rec.Attr(splitKey))
	return store.Append(id, chunk)
}
