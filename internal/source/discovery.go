package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aevon-lab/geosplit/internal/core/record"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Keys returns the attribute names of the first record, in locale-aware order.
// An empty dataset has no keys.
func Keys(ctx context.Context, r Reader) ([]string, error) {
	src, err := r.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	rec, err := src.Next(ctx)
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	keys := rec.Keys()
	collate.New(language.Und).SortStrings(keys)
	return keys, nil
}

// DistinctValues reads the whole dataset once and returns every present value of key,
// deduplicated and in locale-aware order of their string form. Null and empty values
// are left out.
func DistinctValues(ctx context.Context, r Reader, key string) ([]record.Value, error) {
	src, err := r.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	seen := make(map[string]struct{})
	values := []record.Value{}
	var read int64
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("distinct values of %q: %w", key, err)
		}
		read++

		v := rec.Attr(key)
		if v.IsAbsent() {
			continue
		}
		if _, dup := seen[v.Key()]; dup {
			continue
		}
		seen[v.Key()] = struct{}{}
		values = append(values, v)
	}

	c := collate.New(language.Und)
	sort.SliceStable(values, func(i, j int) bool {
		if cmp := c.CompareString(values[i].String(), values[j].String()); cmp != 0 {
			return cmp < 0
		}
		// Same text, different kinds ("1" and 1): keep a fixed order.
		return values[i].Kind() < values[j].Kind()
	})

	slog.Debug("[Source] Distinct values collected", "path", r.Path(), "key", key, "records", read, "values", len(values))
	return values, nil
}
