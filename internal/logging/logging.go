// Package logging writes timestamped, leveled progress lines to the update log.
// Lines look like:
//
//	2024-05-01 10:00:00,123 | INFO: Checking arcdps
//
// The log file is opened in append mode so successive runs accumulate.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// FileName is the name of the log file inside the installation directory.
const FileName = "gw2_addon_update.log"

const timeFormat = "2006-01-02 15:04:05"

// Handler is a slog.Handler emitting "<time> | <LEVEL>: <message>" lines.
type Handler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
	now   func() time.Time
}

// NewHandler creates a handler writing records at or above level to w.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		now:   time.Now,
	}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = h.now()
	}

	var b strings.Builder
	b.WriteString(t.Format(timeFormat))
	fmt.Fprintf(&b, ",%03d | %s: %s", t.Nanosecond()/int(time.Millisecond), levelName(r.Level), r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value.Resolve())
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Options configures Open.
type Options struct {
	Path   string     // Log file path; empty disables file logging
	Mirror io.Writer  // Optional second destination, e.g. stderr in verbose mode
	Level  slog.Level // Minimum level written
}

// Open creates a logger appending to opts.Path. The returned close function
// is safe to call when no file was opened.
func Open(opts Options) (*slog.Logger, func(), error) {
	var writers []io.Writer
	closeFn := func() {}

	if opts.Path != "" {
		//nolint:gosec // G304: log path comes from the configured install directory
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { _ = f.Close() }
	}
	if opts.Mirror != nil {
		writers = append(writers, opts.Mirror)
	}

	if len(writers) == 0 {
		return slog.New(slog.DiscardHandler), closeFn, nil
	}

	return slog.New(NewHandler(io.MultiWriter(writers...), opts.Level)), closeFn, nil
}
