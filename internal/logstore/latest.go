package logstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rzbill/logwindow/internal/message"
	"github.com/rzbill/logwindow/pkg/log"
)

// SearchKind selects how Search.Value is applied to message text.
type SearchKind int

const (
	SearchSubstring SearchKind = iota
	SearchPattern
)

// Search filters rows by message text.
type Search struct {
	Kind  SearchKind
	Value string
}

// LatestOptions selects a page of the window.
type LatestOptions struct {
	// Limit caps the number of rows returned; zero means the store default.
	// Values above MaxBacklog are clamped to it.
	Limit int

	// Severities keeps only these severities when non-empty.
	Severities []message.Severity

	// Before returns rows older than this key, newest page first.
	Before string

	// After returns rows newer than this key, oldest first.
	After string

	Search *Search
}

type rowFilter struct {
	severities map[message.Severity]struct{}
	substr     string
	re         *regexp.Regexp
}

func newRowFilter(opts LatestOptions) (rowFilter, error) {
	var f rowFilter
	if len(opts.Severities) > 0 {
		f.severities = make(map[message.Severity]struct{}, len(opts.Severities))
		for _, sev := range opts.Severities {
			f.severities[sev] = struct{}{}
		}
	}
	if opts.Search != nil {
		switch opts.Search.Kind {
		case SearchPattern:
			re, err := regexp.Compile(opts.Search.Value)
			if err != nil {
				return f, fmt.Errorf("%w: %v", ErrInvalidSearch, err)
			}
			f.re = re
		case SearchSubstring:
			f.substr = opts.Search.Value
		default:
			return f, fmt.Errorf("%w: unknown kind %d", ErrInvalidSearch, opts.Search.Kind)
		}
	}
	return f, nil
}

func (f rowFilter) keep(m *message.Message) bool {
	if f.severities != nil {
		if _, ok := f.severities[m.Severity]; !ok {
			return false
		}
	}
	if f.re != nil {
		return f.re.MatchString(m.Message)
	}
	return f.substr == "" || strings.Contains(m.Message, f.substr)
}

// Latest returns at most Limit rows in chronological order.
//
// Without After the scan runs backwards from the tail (or from just before
// Before), prepending each page, so the result is the newest matching rows.
// With After it runs forward from just after the cursor and stops at Before
// if given. An unknown cursor yields an empty page. Rows are re-read page by
// page without locking; concurrent writes may shift a boundary row.
func (s *Store) Latest(ctx context.Context, opts LatestOptions) ([]*message.Message, error) {
	limit := int64(opts.Limit)
	if limit <= 0 {
		limit = int64(s.opts.DefaultLimit)
	}
	if limit > int64(s.opts.MaxBacklog) {
		limit = int64(s.opts.MaxBacklog)
	}
	filter, err := newRowFilter(opts)
	if err != nil {
		return nil, err
	}

	w, ok, err := s.findLocation(ctx, opts.Before, opts.After, limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*message.Message{}, nil
	}

	forward := opts.After != ""
	results := []*message.Message{}
	for {
		keys, err := s.backend.LRange(ctx, s.latest, w.start, w.finish)
		if err != nil {
			return nil, s.wrap("latest", err)
		}
		if len(keys) == 0 {
			break
		}
		values, err := s.backend.HMGet(ctx, s.content, keys...)
		if err != nil {
			return nil, s.wrap("latest", err)
		}

		var (
			batch   []*message.Message
			reached bool
		)
		for i, key := range keys {
			if opts.Before != "" && key == opts.Before {
				reached = true
				break
			}
			if values[i] == "" {
				continue
			}
			m, err := message.Unmarshal(values[i])
			if err != nil {
				s.logger.Warn("skipping undecodable entry", log.Str("key", key), log.Err(err))
				continue
			}
			if filter.keep(m) {
				batch = append(batch, m)
			}
		}

		if forward {
			results = append(results, batch...)
			if reached || int64(len(results)) >= limit || w.finish >= -1 {
				break
			}
			w.start = w.finish + 1
			w.finish = min(w.finish+limit, -1)
			continue
		}

		results = append(batch, results...)
		if int64(len(results)) >= limit {
			break
		}
		w = w.shift(-limit)
	}

	if int64(len(results)) > limit {
		if forward {
			results = results[:limit]
		} else {
			results = results[int64(len(results))-limit:]
		}
	}
	if err := s.markProtected(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) markProtected(ctx context.Context, rows []*message.Message) error {
	if len(rows) == 0 {
		return nil
	}
	saved, err := s.backend.SMembers(ctx, s.saved)
	if err != nil {
		return s.wrap("latest", err)
	}
	if len(saved) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(saved))
	for _, k := range saved {
		set[k] = struct{}{}
	}
	for _, m := range rows {
		_, m.Protected = set[m.Key]
	}
	return nil
}
