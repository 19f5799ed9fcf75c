package staging

import (
	"bytes"
	"encoding/json"
	"fmt"

	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/groupkey"
	"github.com/aevon-lab/geosplit/internal/core/record"
)

// separator terminates every staged chunk. Encoded features never contain a raw newline.
const separator = '\n'

// Store is an append-only accumulation of serialized records, one unit per group.
//
// Append is called by a single writer during the partitioning pass. Units and ReadAll
// may be called concurrently once partitioning is over; they never mutate a unit.
type Store interface {
	// Append adds chunk to the unit named id, creating the unit on first use.
	Append(id groupkey.Identifier, chunk []byte) error

	// Units returns every unit touched so far, in order of first append.
	Units() ([]groupkey.Identifier, error)

	// ReadAll returns the chunks of one unit in append order.
	// Returns a *errors.StagingCorruptError if a chunk no longer parses as a feature.
	ReadAll(id groupkey.Identifier) ([]json.RawMessage, error)

	// Close releases the store and destroys its workspace. Safe to call more than once.
	Close() error
}

func checkChunk(chunk []byte) error {
	if len(chunk) == 0 {
		return coreerr.Wrap(coreerr.ErrStagingIO, fmt.Errorf("empty chunk"), "append")
	}
	if bytes.IndexByte(chunk, separator) >= 0 {
		return coreerr.Wrap(coreerr.ErrStagingIO, fmt.Errorf("chunk contains record separator"), "append")
	}
	return nil
}

// decodeChunks validates every chunk of a unit read back from staging.
func decodeChunks(id groupkey.Identifier, chunks [][]byte) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(chunks))
	for i, chunk := range chunks {
		raw, err := record.DecodeChunk(chunk)
		if err != nil {
			return nil, &coreerr.StagingCorruptError{
				Unit:  id.String(),
				Line:  i + 1,
				Chunk: chunk,
				Err:   err,
			}
		}
		out = append(out, raw)
	}
	return out, nil
}
