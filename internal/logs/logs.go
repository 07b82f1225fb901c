// Package logs builds the process logger.
//
// Records fan out to a terminal handler (text or JSON), an optional JSON
// file and, when running as a systemd service, the journal.
package logs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

var level = new(slog.LevelVar)

// SetLevel changes the level of every logger built by New.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Options configures New.
type Options struct {
	// Writer receives terminal output. Default: os.Stderr.
	Writer io.Writer

	// Format is "text" (default) or "json".
	Format string

	// Level is the initial level. Default: info.
	Level slog.Level

	// File, if set, receives JSON records in addition to Writer.
	File string

	// Journal forces the systemd journal handler on or off. nil detects a
	// systemd service from /proc/self/cgroup.
	Journal *bool
}

// New builds a logger from opts. The returned close function releases the
// log file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	level.Set(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	var terminal slog.Handler
	switch opts.Format {
	case "", "text":
		terminal = slog.NewTextHandler(writer, handlerOpts)
	case "json":
		terminal = slog.NewJSONHandler(writer, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	handlers := []slog.Handler{terminal}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, handlerOpts))
		closeFn = f.Close
	}

	useJournal := isSystemdService()
	if opts.Journal != nil {
		useJournal = *opts.Journal
	}
	if useJournal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
			record.Add("error", err)
			_ = terminal.Handle(context.Background(), record)
		} else {
			handlers = append(handlers, journal)
		}
	}

	return slog.New(&Handler{Handler: slogmulti.Fanout(handlers...)}), closeFn, nil
}

// Handler adds the scenario carried by the record's context.
type Handler struct {
	slog.Handler
}

type scenarioKey struct{}

// WithScenario tags records logged with ctx by the scenario name.
func WithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, name)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if name, ok := ctx.Value(scenarioKey{}).(string); ok {
		record.Add("scenario", name)
	}
	return h.Handler.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Join(fmt.Errorf("unknown log level %q", s), err)
	}
	return l, nil
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service")
}
