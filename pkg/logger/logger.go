// Package logger is a thin structured-logging layer over zerolog with an optional
// digest of repeated warnings and errors.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl     zerolog.Logger
	digest *Digest
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	zl := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()
	return &Logger{zl: zl}, nil
}

// NewWriter logs JSON to w. Tests use it to inspect output.
func NewWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level)}
}

func openOutput(dst string) (io.Writer, error) {
	switch dst {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	return f, nil
}

// Nop discards everything. Used by tests and as the default for optional loggers.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying the given fields on every event.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.value())
	}
	return &Logger{zl: ctx.Logger(), digest: l.digest}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
	l.addToDigest("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.addToDigest("error", msg, fields)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	if event == nil {
		return
	}
	for _, f := range fields {
		f.apply(event)
	}
	event.Msg(msg)
}

// AttachDigest routes warn and error events into d. A previous digest is closed.
func (l *Logger) AttachDigest(d *Digest) {
	if l.digest != nil && l.digest != d {
		l.digest.Close()
	}
	l.digest = d
}

// DetachDigest flushes and closes the attached digest.
func (l *Logger) DetachDigest() {
	if l.digest != nil {
		l.digest.Close()
		l.digest = nil
	}
}

func (l *Logger) addToDigest(level, msg string, fields []Field) {
	if l.digest == nil {
		return
	}
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.value()
	}
	l.digest.Add(level, msg, m, caller)
}

type fieldKind uint8

const (
	kindAny fieldKind = iota
	kindString
	kindInt
	kindInt64
	kindFloat
	kindBool
	kindError
)

// Field is one structured key/value pair. Build it with the constructors below.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	num  int64
	flt  float64
	any  interface{}
}

func (f Field) apply(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.Key, f.str)
	case kindInt:
		e.Int(f.Key, int(f.num))
	case kindInt64:
		e.Int64(f.Key, f.num)
	case kindFloat:
		e.Float64(f.Key, f.flt)
	case kindBool:
		e.Bool(f.Key, f.num != 0)
	case kindError:
		if err, _ := f.any.(error); err != nil {
			e.AnErr(f.Key, err)
		}
	default:
		e.Interface(f.Key, f.any)
	}
}

// value is the plain Go value, used for child loggers and digest keys.
func (f Field) value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt:
		return int(f.num)
	case kindInt64:
		return f.num
	case kindFloat:
		return f.flt
	case kindBool:
		return f.num != 0
	case kindError:
		if err, _ := f.any.(error); err != nil {
			return err.Error()
		}
		return nil
	default:
		return f.any
	}
}

func String(key, value string) Field  { return Field{Key: key, kind: kindString, str: value} }
func Int(key string, value int) Field { return Field{Key: key, kind: kindInt, num: int64(value)} }
func Int64(key string, value int64) Field {
	return Field{Key: key, kind: kindInt64, num: value}
}
func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, flt: value} }
func Any(key string, value interface{}) Field { return Field{Key: key, any: value} }

func Bool(key string, value bool) Field {
	f := Field{Key: key, kind: kindBool}
	if value {
		f.num = 1
	}
	return f
}

func Error(err error) Field { return Field{Key: "error", kind: kindError, any: err} }

// Duration is logged in milliseconds.
func Duration(key string, value time.Duration) Field { return Int64(key, value.Milliseconds()) }

func Strings(key string, value []string) Field { return String(key, strings.Join(value, ", ")) }

// Ticker and Module tag events with the instrument and scorer they concern.
func Ticker(t string) Field    { return String("ticker", t) }
func Module(m string) Field    { return String("module", m) }
func Component(c string) Field { return String("component", c) }
