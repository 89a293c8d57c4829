package logstore

import "context"

// window is an inclusive range of tail-relative offsets into LATEST.
type window struct {
	start, finish int64
}

func (w window) shift(by int64) window {
	return window{start: w.start + by, finish: w.finish + by}
}

// findLocation resolves a cursor key into the first window to scan. With no
// cursor it is the newest page. With before it is the page ending just
// before the cursor; with after, the page starting just after it (after wins
// when both are set). ok is false when the cursor is no longer in LATEST, or
// when nothing newer than an after cursor exists.
//
// The cursor is searched for by walking LATEST backwards from the tail, one
// page at a time.
func (s *Store) findLocation(ctx context.Context, before, after string, limit int64) (window, bool, error) {
	w := window{start: -limit, finish: -1}
	cursor := after
	if cursor == "" {
		cursor = before
	}
	if cursor == "" {
		return w, true, nil
	}

	found := int64(-1)
	for found < 0 {
		keys, err := s.backend.LRange(ctx, s.latest, w.start, w.finish)
		if err != nil {
			return window{}, false, s.wrap("find location", err)
		}
		if len(keys) == 0 {
			return window{}, false, nil
		}
		if i := indexOf(keys, cursor); i >= 0 {
			// A short page was clamped at the head; re-base the index so
			// w.start+found is the cursor's offset.
			found = int64(i) + limit - int64(len(keys))
			break
		}
		w = w.shift(-limit)
	}

	if after != "" {
		w = w.shift(found + 1)
	} else {
		w = w.shift(found - limit)
	}
	if w.finish > -1 {
		w.finish = -1
	}
	if w.start > -1 {
		return window{}, false, nil
	}
	return w, true, nil
}

// InWindow reports whether key is currently in LATEST. Protected entries
// that were evicted are still readable with Get but are not in the window.
func (s *Store) InWindow(ctx context.Context, key string) (bool, error) {
	page := int64(s.opts.DefaultLimit)
	w := window{start: -page, finish: -1}
	for {
		keys, err := s.backend.LRange(ctx, s.latest, w.start, w.finish)
		if err != nil {
			return false, err
		}
		if len(keys) == 0 {
			return false, nil
		}
		if indexOf(keys, key) >= 0 {
			return true, nil
		}
		w = w.shift(-page)
	}
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
