package filter

import (
	"fmt"
	"strings"

	"github.com/aevon-lab/geosplit/internal/core/config"
	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/core/record"
	"github.com/shopspring/decimal"
)

// Predicate decides whether a record takes part in a run. A nil Predicate keeps everything.
type Predicate func(record.Record) bool

// AllowList keeps records whose value of key is one of values. Allowed values arrive as
// text (flags, YAML lists, JSON requests), so each entry stands for every kind it can be
// read as: "7" allows the string "7" and the number 7, "true" the string and the boolean.
// Within a kind membership is strict; numbers compare by value, so "7.0" allows 7.
// Records with a null or missing value never pass.
func AllowList(key string, values []string) Predicate {
	allowed := make(map[string]struct{}, len(values)*2)
	for _, text := range values {
		for _, v := range readings(text) {
			allowed[v.Key()] = struct{}{}
		}
	}
	return func(r record.Record) bool {
		v := r.Attr(key)
		if v.IsNull() {
			return false
		}
		_, ok := allowed[v.Key()]
		return ok
	}
}

// readings lists the typed values an allow-list entry can denote.
func readings(text string) []record.Value {
	out := []record.Value{record.String(text)}
	if d, err := decimal.NewFromString(strings.TrimSpace(text)); err == nil {
		out = append(out, record.Number(d))
	}
	switch text {
	case "true", "false":
		out = append(out, record.Bool(text == "true"))
	}
	return out
}

// Substring keeps records whose value of key contains any of the comma separated terms,
// ignoring case. Blank terms are dropped; with no terms left nothing passes.
// Records with a null or missing value never pass.
func Substring(key string, text string) Predicate {
	terms := Terms(text)
	return func(r record.Record) bool {
		v := r.Attr(key)
		if v.IsNull() {
			return false
		}
		s := strings.ToUpper(v.String())
		for _, term := range terms {
			if strings.Contains(s, term) {
				return true
			}
		}
		return false
	}
}

// Terms splits a comma separated filter text into trimmed, upper-cased, non-blank terms.
func Terms(text string) []string {
	var terms []string
	for _, part := range strings.Split(text, ",") {
		term := strings.ToUpper(strings.TrimSpace(part))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// Resolve builds the predicate selected by cfg. Returns nil for FilterNone.
func Resolve(cfg config.FilterConfig) (Predicate, error) {
	switch cfg.Mode {
	case config.FilterNone, "":
		return nil, nil
	case config.FilterList:
		return AllowList(cfg.Key, cfg.Values), nil
	case config.FilterText:
		return Substring(cfg.Key, cfg.Text), nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter.mode %q", coreerr.ErrInvalidConfig, cfg.Mode)
	}
}
