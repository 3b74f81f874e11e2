package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by Options.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LevelEnv names the environment variable that overrides the level derived
// from verbosity flags.
const LevelEnv = "LOG"

// Options describes logger configuration supplied at creation time.
type Options struct {
	Level  string
	Format string
	Color  bool
	Writer io.Writer
}

// Logger wraps zerolog to provide a simplified API for the application.
type Logger struct {
	base zerolog.Logger
}

// New creates a configured Logger instance based on Options.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := parseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var output io.Writer
	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		console := zerolog.NewConsoleWriter()
		console.Out = writer
		console.NoColor = !opts.Color
		console.TimeFormat = time.RFC3339
		output = console
	case FormatJSON:
		output = writer
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &Logger{base: logger}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// LevelFromFlags maps repeated -v / -q counts to a level name; -q overrides
// -v. The LOG environment variable, when set, wins over both.
func LevelFromFlags(verbose, quiet int) string {
	if env := strings.TrimSpace(os.Getenv(LevelEnv)); env != "" {
		return env
	}

	switch {
	case quiet == 1:
		return "warn"
	case quiet == 2:
		return "error"
	case quiet >= 3:
		return "disabled"
	case verbose == 1:
		return "debug"
	case verbose >= 2:
		return "trace"
	}
	return "info"
}

func parseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "off" {
		return zerolog.Disabled, nil
	}
	return zerolog.ParseLevel(name)
}

// Level reports the minimum level this logger writes.
func (l *Logger) Level() string {
	if l == nil {
		return zerolog.Disabled.String()
	}
	return l.base.GetLevel().String()
}

// WithFields returns a derived logger that always writes the supplied fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}

	builder := l.base.With()
	for key, value := range fields {
		builder = builder.Interface(key, value)
	}

	derived := Logger{base: builder.Logger()}
	return &derived
}

// Component returns a derived logger tagged with a pipeline component.
func (l *Logger) Component(kind, name string) *Logger {
	if l == nil {
		return nil
	}
	derived := Logger{base: l.base.With().Str("component_kind", kind).Str("component", name).Logger()}
	return &derived
}

// Trace writes a trace-level log entry if enabled.
func (l *Logger) Trace(msg string) {
	if l == nil {
		return
	}
	l.base.Trace().Msg(msg)
}

// Debug writes a debug-level log entry if enabled.
func (l *Logger) Debug(msg string) {
	if l == nil {
		return
	}
	l.base.Debug().Msg(msg)
}

// Info writes an informational log entry.
func (l *Logger) Info(msg string) {
	if l == nil {
		return
	}
	l.base.Info().Msg(msg)
}

// Warn writes a warning level log entry.
func (l *Logger) Warn(msg string) {
	if l == nil {
		return
	}
	l.base.Warn().Msg(msg)
}

// Error writes an error log entry including the supplied error context.
func (l *Logger) Error(err error, msg string) {
	if l == nil {
		return
	}
	event := l.base.Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}
