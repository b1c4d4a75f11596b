package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog behind a small structured-field API so domain
// packages never import zerolog directly.
type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		Logger()

	return &Logger{zl: zl}, nil
}

// With returns a child logger with the fields bound to every event.
func (l *Logger) With(fields ...Field) *Logger {
	child := l.zl
	for _, f := range fields {
		child = child.With().Interface(f.key(), f.value()).Logger()
	}
	return &Logger{zl: child}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

// Field adds one structured key/value to an event.
type Field interface {
	AddTo(event *zerolog.Event)
	key() string
	value() interface{}
}

type stringField struct{ k, v string }

func (f stringField) AddTo(e *zerolog.Event) { e.Str(f.k, f.v) }
func (f stringField) key() string            { return f.k }
func (f stringField) value() interface{}     { return f.v }

type intField struct {
	k string
	v int
}

func (f intField) AddTo(e *zerolog.Event) { e.Int(f.k, f.v) }
func (f intField) key() string            { return f.k }
func (f intField) value() interface{}     { return f.v }

type int64Field struct {
	k string
	v int64
}

func (f int64Field) AddTo(e *zerolog.Event) { e.Int64(f.k, f.v) }
func (f int64Field) key() string            { return f.k }
func (f int64Field) value() interface{}     { return f.v }

type floatField struct {
	k string
	v float64
}

func (f floatField) AddTo(e *zerolog.Event) { e.Float64(f.k, f.v) }
func (f floatField) key() string            { return f.k }
func (f floatField) value() interface{}     { return f.v }

type boolField struct {
	k string
	v bool
}

func (f boolField) AddTo(e *zerolog.Event) { e.Bool(f.k, f.v) }
func (f boolField) key() string            { return f.k }
func (f boolField) value() interface{}     { return f.v }

type errorField struct{ v error }

func (f errorField) AddTo(e *zerolog.Event) { e.Err(f.v) }
func (f errorField) key() string            { return "error" }
func (f errorField) value() interface{}     { return f.v }

type anyField struct {
	k string
	v interface{}
}

func (f anyField) AddTo(e *zerolog.Event) { e.Interface(f.k, f.v) }
func (f anyField) key() string            { return f.k }
func (f anyField) value() interface{}     { return f.v }

// --- Field constructors ---

func String(key, value string) Field          { return stringField{k: key, v: value} }
func Int(key string, value int) Field         { return intField{k: key, v: value} }
func Int64(key string, value int64) Field     { return int64Field{k: key, v: value} }
func Float64(key string, value float64) Field { return floatField{k: key, v: value} }
func Bool(key string, value bool) Field       { return boolField{k: key, v: value} }
func Error(err error) Field                   { return errorField{v: err} }
func Any(key string, value interface{}) Field { return anyField{k: key, v: value} }
func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}
func Duration(key string, value time.Duration) Field {
	return int64Field{k: key, v: value.Milliseconds()}
}
