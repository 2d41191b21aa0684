package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/isseis/go-manifest-producer/internal/safefileio"
	"github.com/isseis/go-manifest-producer/internal/terminal"
)

// Static errors for Setup validation.
var (
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// Log formats for non-interactive output.
const (
	FormatText = "text"
	FormatJSON = "json"
)

const logFilePerm = 0o600

// Options configures Setup.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format selects the machine handler used when the console is not
	// interactive. Empty means text.
	Format string

	// LogFile, when set, receives every record at debug level as JSON.
	LogFile string

	// Console is where human and machine output goes. Defaults to os.Stderr.
	Console io.Writer

	// Terminal carries command line overrides for terminal detection.
	Terminal terminal.Options

	// Env replaces the process environment during detection.
	Env terminal.Environment
}

// Setup builds a logger from opts. The returned close function releases the
// log file, if any, and is never nil.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, noop, err
	}
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatJSON {
		return nil, noop, fmt.Errorf("%w: %q", ErrInvalidLogFormat, opts.Format)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	caps := detect(console, opts)

	var handlers []slog.Handler
	if caps.Interactive {
		h, err := NewConsoleHandler(ConsoleHandlerOptions{Writer: console, Level: level, Color: caps.Color})
		if err != nil {
			return nil, noop, err
		}
		handlers = append(handlers, h)
	} else {
		handlerOpts := &slog.HandlerOptions{Level: level}
		if format == FormatJSON {
			handlers = append(handlers, slog.NewJSONHandler(console, handlerOpts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(console, handlerOpts))
		}
	}

	closer := noop
	if opts.LogFile != "" {
		f, err := safefileio.OpenAppend(opts.LogFile, logFilePerm)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closer = f.Close
	}

	return slog.New(NewMultiHandler(handlers...)), closer, nil
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
	return level, nil
}

func detect(console io.Writer, opts Options) terminal.Capabilities {
	fd := -1
	if f, ok := console.(*os.File); ok {
		fd = int(f.Fd())
	}
	if opts.Env != nil {
		return terminal.DetectWith(opts.Env, fd, opts.Terminal)
	}
	return terminal.Detect(fd, opts.Terminal)
}
