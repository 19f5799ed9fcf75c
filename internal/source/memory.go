package source

import (
	"context"
	"io"

	"github.com/aevon-lab/geosplit/internal/core/record"
)

// MemoryReader serves a fixed slice of records. Every Open starts a new pass.
type MemoryReader struct {
	name    string
	records []record.Record
}

// NewMemoryReader returns a reader over records. name is reported as the dataset path.
func NewMemoryReader(name string, records []record.Record) *MemoryReader {
	return &MemoryReader{name: name, records: records}
}

func (r *MemoryReader) Path() string {
	return r.name
}

func (r *MemoryReader) Open() (Source, error) {
	return &memorySource{records: r.records}, nil
}

type memorySource struct {
	records []record.Record
	pos     int
}

func (s *memorySource) Next(ctx context.Context) (record.Record, error) {
	if err := checkContext(ctx); err != nil {
		return record.Record{}, err
	}
	if s.pos >= len(s.records) {
		return record.Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *memorySource) Close() error {
	return nil
}
