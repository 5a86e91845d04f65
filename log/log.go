// Package log provides a leveled, structured logger for the whole program.
// It wraps zerolog behind a small package-level API so callers just use
// log.Infow, log.Debugf, etc. Init must be called once at startup; until
// then logging is a no-op.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log levels accepted by Init.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// logTestWriterName is a reserved output name used by benchmarks and tests
// to redirect the log output to logTestWriter.
const logTestWriterName = "_testWriter"

var (
	logger zerolog.Logger
	level  string

	// logTestWriter is the writer used when Init output is logTestWriterName.
	logTestWriter io.Writer = io.Discard

	// panicOnInvalidChars enables a sanity check on every formatted message:
	// if the message contains bytes outside the printable ASCII range plus
	// newline/tab, the logger panics. Only meant for tests and debugging,
	// controlled by the LOG_PANIC_ON_INVALIDCHARS env var.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

// Init initializes the logger with the given level ("debug", "info", "warn"
// or "error") and output ("stdout", "stderr" or a file path). If errorOutput
// is not nil, error and fatal messages are duplicated to it.
func Init(logLevel, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
		}
		out = f
	}
	out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339Nano}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, errWriter{errorOutput})
	}
	zl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		panic(fmt.Sprintf("invalid log level %q: %v", logLevel, err))
	}
	logger = zerolog.New(out).Level(zl).With().Timestamp().Logger()
	level = logLevel
	Infof("logger construction succeeded at level %s with output %s", logLevel, output)
}

// Level returns the log level configured by the last call to Init.
func Level() string { return level }

// errWriter duplicates error and fatal entries to a secondary writer.
type errWriter struct{ w io.Writer }

func (ew errWriter) Write(p []byte) (int, error) { return len(p), nil }

func (ew errWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.ErrorLevel {
		return ew.w.Write(p)
	}
	return len(p), nil
}

// checkInvalidChars panics if the message contains non-printable characters
// and panicOnInvalidChars is enabled.
func checkInvalidChars(msg string) string {
	if panicOnInvalidChars {
		for _, c := range []byte(msg) {
			if c < 0x20 && c != '\n' && c != '\t' {
				panic(fmt.Sprintf("invalid char %x in log message: %q", c, msg))
			}
			if c >= 0x7f {
				panic(fmt.Sprintf("invalid char %x in log message: %q", c, msg))
			}
		}
	}
	return msg
}

func withFields(ev *zerolog.Event, keyvalues ...any) *zerolog.Event {
	for i := 0; i+1 < len(keyvalues); i += 2 {
		key, ok := keyvalues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvalues[i])
		}
		ev = ev.Interface(key, keyvalues[i+1])
	}
	return ev
}

// Debug sends a debug level log message.
func Debug(args ...any) { logger.Debug().Msg(checkInvalidChars(fmt.Sprint(args...))) }

// Debugf sends a formatted debug level log message.
func Debugf(template string, args ...any) {
	logger.Debug().Msg(checkInvalidChars(fmt.Sprintf(template, args...)))
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	withFields(logger.Debug(), keyvalues...).Msg(checkInvalidChars(msg))
}

// Info sends an info level log message.
func Info(args ...any) { logger.Info().Msg(checkInvalidChars(fmt.Sprint(args...))) }

// Infof sends a formatted info level log message.
func Infof(template string, args ...any) {
	logger.Info().Msg(checkInvalidChars(fmt.Sprintf(template, args...)))
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	withFields(logger.Info(), keyvalues...).Msg(checkInvalidChars(msg))
}

// Warn sends a warn level log message.
func Warn(args ...any) { logger.Warn().Msg(checkInvalidChars(fmt.Sprint(args...))) }

// Warnf sends a formatted warn level log message.
func Warnf(template string, args ...any) {
	logger.Warn().Msg(checkInvalidChars(fmt.Sprintf(template, args...)))
}

// Warnw sends a warn level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	withFields(logger.Warn(), keyvalues...).Msg(checkInvalidChars(msg))
}

// Error sends an error level log message.
func Error(args ...any) { logger.Error().Msg(checkInvalidChars(fmt.Sprint(args...))) }

// Errorf sends a formatted error level log message.
func Errorf(template string, args ...any) {
	logger.Error().Msg(checkInvalidChars(fmt.Sprintf(template, args...)))
}

// Errorw sends an error level log message for err with an explanation.
func Errorw(err error, msg string) {
	logger.Error().Err(err).Msg(checkInvalidChars(msg))
}

// Fatal sends a fatal level log message and exits with code 1.
func Fatal(args ...any) {
	logger.Fatal().Msg(checkInvalidChars(fmt.Sprint(args...)))
}

// Fatalf sends a formatted fatal level log message and exits with code 1.
func Fatalf(template string, args ...any) {
	logger.Fatal().Msg(checkInvalidChars(fmt.Sprintf(template, args...)))
}

func init() {
	// Default to a disabled logger so packages can log before Init.
	logger = zerolog.New(io.Discard).Level(zerolog.Disabled)
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	if s := strings.ToLower(os.Getenv("LOG_LEVEL")); s != "" {
		level = s
	}
}
