// Package diag records the diagnostic log of a run.
package diag

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"
)

// Entry is one recorded diagnostic line.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a slog.Handler that keeps every record and forwards it to an
// optional inner handler.
type Recorder struct {
	sink   *sink
	inner  slog.Handler
	attrs  []slog.Attr
	groups []string
	level  slog.Leveler
}

// NewRecorder records records at level and above. inner may be nil.
func NewRecorder(inner slog.Handler, level slog.Leveler) *Recorder {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Recorder{sink: &sink{}, inner: inner, level: level}
}

func (r *Recorder) Enabled(ctx context.Context, l slog.Level) bool {
	if l >= r.level.Level() {
		return true
	}
	return r.inner != nil && r.inner.Enabled(ctx, l)
}

func (r *Recorder) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= r.level.Level() {
		e := Entry{Time: rec.Time, Level: rec.Level.String(), Message: rec.Message}
		if n := len(r.attrs) + rec.NumAttrs(); n > 0 {
			e.Attrs = make(map[string]any, n)
			for _, a := range r.attrs {
				r.put(e.Attrs, a)
			}
			rec.Attrs(func(a slog.Attr) bool {
				r.put(e.Attrs, a)
				return true
			})
		}
		r.sink.mu.Lock()
		r.sink.entries = append(r.sink.entries, e)
		r.sink.mu.Unlock()
	}
	if r.inner != nil && r.inner.Enabled(ctx, rec.Level) {
		return r.inner.Handle(ctx, rec)
	}
	return nil
}

func (r *Recorder) put(m map[string]any, a slog.Attr) {
	key := a.Key
	for i := len(r.groups) - 1; i >= 0; i-- {
		key = r.groups[i] + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, g := range v.Group() {
			r.put(m, slog.Attr{Key: a.Key + "." + g.Key, Value: g.Value})
		}
		return
	}
	m[key] = encodable(v.Any())
}

// encodable keeps recorded attributes JSON friendly.
func encodable(v any) any {
	switch x := v.(type) {
	case error:
		return x.Error()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
	}
	return v
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *r
	c.attrs = append(append([]slog.Attr(nil), r.attrs...), attrs...)
	if r.inner != nil {
		c.inner = r.inner.WithAttrs(attrs)
	}
	return &c
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	c := *r
	c.groups = append(append([]string(nil), r.groups...), name)
	if r.inner != nil {
		c.inner = r.inner.WithGroup(name)
	}
	return &c
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	return append([]Entry(nil), r.sink.entries...)
}

// Count returns how many recorded entries carry msg.
func (r *Recorder) Count(msg string) int {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	n := 0
	for _, e := range r.sink.entries {
		if e.Message == msg {
			n++
		}
	}
	return n
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
