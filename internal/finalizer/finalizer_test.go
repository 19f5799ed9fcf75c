package finalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
	"github.com/aevon-lab/geosplit/internal/core/record"
	destinationmocks "github.com/aevon-lab/geosplit/internal/mocks/destination"
	"github.com/aevon-lab/geosplit/internal/staging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps every document and tracks how many Puts overlap.
type recordingSink struct {
	delay time.Duration

	mu        sync.Mutex
	docs      map[string][]byte
	active    int
	maxActive int
}

func newRecordingSink(delay time.Duration) *recordingSink {
	return &recordingSink{delay: delay, docs: make(map[string][]byte)}
}

func (s *recordingSink) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.active--
	s.docs[name] = data
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Location() string { return "memory" }

func stage(t *testing.T, groups, perGroup int) (staging.Store, []groupkey.Identifier) {
	t.Helper()
	store := staging.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })

	for g := 0; g < groups; g++ {
		for i := 0; i < perGroup; i++ {
			chunk, err := record.Encode(record.Record{Attributes: map[string]record.Value{
				"group": record.Int(int64(g)),
				"seq":   record.Int(int64(i)),
			}})
			require.NoError(t, err)
			require.NoError(t, store.Append(groupkey.Identifier(fmt.Sprintf("g%02d", g)), chunk))
		}
	}
	units, err := store.Units()
	require.NoError(t, err)
	return store, units
}

func TestFinalizeAll_ConcurrencyCap(t *testing.T) {
	store, units := stage(t, 50, 3)
	sink := newRecordingSink(5 * time.Millisecond)

	written, err := New(store, sink, nil, Parameter{Extension: "geojson", Concurrency: 10}).
		FinalizeAll(context.Background(), units)
	require.NoError(t, err)
	require.Equal(t, int64(50), written)
	require.Len(t, sink.docs, 50)
	require.LessOrEqual(t, sink.maxActive, 10)
	require.Greater(t, sink.maxActive, 1)
}

func TestFinalizeAll_DocumentContent(t *testing.T) {
	store, units := stage(t, 1, 4)
	sink := newRecordingSink(0)

	_, err := New(store, sink, nil, Parameter{Extension: "json", Concurrency: 2}).
		FinalizeAll(context.Background(), units)
	require.NoError(t, err)

	doc, ok := sink.docs["g00.json"]
	require.True(t, ok)

	recs, err := record.DecodeCollection(doc)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for i, rec := range recs {
		require.Equal(t, fmt.Sprint(i), rec.Attr("seq").String())
	}

	var parsed map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc, &parsed))
	require.JSONEq(t, `"FeatureCollection"`, string(parsed["type"]))
}

func TestFinalizeAll_FirstFailureStopsAdmission(t *testing.T) {
	store, units := stage(t, 5, 1)
	sink := destinationmocks.NewSink(t)
	sink.EXPECT().Location().Return("mock")
	sink.EXPECT().Put(mock.Anything, "g00.geojson", mock.Anything).Return(nil).Once()
	sink.EXPECT().Put(mock.Anything, "g01.geojson", mock.Anything).
		Return(coreerr.Wrap(coreerr.ErrDestinationWrite, errors.New("disk full"), "write")).Once()

	written, err := New(store, sink, nil, Parameter{Concurrency: 1}).FinalizeAll(context.Background(), units)
	require.ErrorIs(t, err, coreerr.ErrDestinationWrite)
	require.Equal(t, int64(1), written)
}

func TestFinalizeAll_CorruptChunkFailsBatch(t *testing.T) {
	store, units := stage(t, 3, 1)
	require.NoError(t, store.Append(units[1], []byte(`{"type":"Feature","geometry":{"type":"Point"`)))
	sink := newRecordingSink(0)

	_, err := New(store, sink, nil, Parameter{Concurrency: 1}).FinalizeAll(context.Background(), units)
	require.ErrorIs(t, err, coreerr.ErrStagingCorrupt)

	var corrupt *coreerr.StagingCorruptError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, units[1].String(), corrupt.Unit)
	require.NotContains(t, sink.docs, units[1].String()+".geojson")
}

func TestFinalizeAll_CanceledContext(t *testing.T) {
	store, units := stage(t, 3, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	written, err := New(store, newRecordingSink(0), nil, DefaultParameter()).FinalizeAll(ctx, units)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, written)
}

func TestFinalizeAll_NoUnits(t *testing.T) {
	written, err := New(staging.NewMemoryStore(0), newRecordingSink(0), nil, DefaultParameter()).
		FinalizeAll(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, written)
}
