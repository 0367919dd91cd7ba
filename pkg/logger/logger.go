// Package logger provides structured logging setup for the grad record hub.
// It configures log/slog with JSON output, level parsing from configuration,
// and domain field helpers shared across components.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseLevel parses a string into a slog.Level. Unknown values fall back
// to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	AddSource bool
	// Pretty switches to the text handler for local development.
	Pretty bool
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stdout,
		Level:     slog.LevelInfo,
		AddSource: false,
		Pretty:    false,
	}
}

// New creates a configured *slog.Logger.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if opts.Pretty {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	return slog.New(handler)
}

// Setup creates a logger from a level string and installs it as the
// process-wide default.
func Setup(level string, pretty bool) *slog.Logger {
	log := New(Options{
		Output: os.Stdout,
		Level:  ParseLevel(level),
		Pretty: pretty,
	})
	slog.SetDefault(log)
	return log
}

// Err creates an error attribute with the conventional "error" key.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Domain field helpers shared across components.
func Pen(pen string) slog.Attr            { return slog.String("pen", pen) }
func StudentID(id string) slog.Attr       { return slog.String("student_id", id) }
func EventID(id string) slog.Attr         { return slog.String("event_id", id) }
func EventType(t string) slog.Attr        { return slog.String("event_type", t) }
func ProgramCode(code string) slog.Attr   { return slog.String("program", code) }
func Component(name string) slog.Attr     { return slog.String("component", name) }
func Operation(name string) slog.Attr     { return slog.String("operation", name) }
func Latency(d time.Duration) slog.Attr   { return slog.String("latency", d.String()) }
func RequestID(id string) slog.Attr       { return slog.String("request_id", id) }
