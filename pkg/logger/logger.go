package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes structured lines through zerolog. Warn and Error lines are
// also handed to the LogCollector attached to the root, which children
// created with With share.
type Logger struct {
	zl        zerolog.Logger
	ctx       []Field
	collector *atomic.Pointer[LogCollector]
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
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
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl, collector: new(atomic.Pointer[LogCollector])}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	return f, nil
}

// NewNop discards output. A collector can still be attached.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop(), collector: new(atomic.Pointer[LogCollector])}
}

// With returns a child logger that always carries fields.
func (l *Logger) With(fields ...Field) *Logger {
	zctx := l.zl.With()
	for _, f := range fields {
		zctx = f.addToContext(zctx)
	}
	ctx := make([]Field, 0, len(l.ctx)+len(fields))
	ctx = append(append(ctx, l.ctx...), fields...)
	return &Logger{zl: zctx.Logger(), ctx: ctx, collector: l.collector}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(l.zl.Info(), msg, fields) }

func (l *Logger) Warn(msg string, fields ...Field) {
	l.write(l.zl.Warn(), msg, fields)
	l.collect("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.write(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) write(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		ev.Str("caller", shortCaller(file, line))
	}
	for _, f := range fields {
		f.addToEvent(ev)
	}
	ev.Msg(msg)
}

func (l *Logger) collect(level, msg string, fields []Field) {
	c := l.collector.Load()
	if c == nil {
		return
	}
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = shortCaller(file, line)
	}
	m := make(map[string]interface{}, len(l.ctx)+len(fields))
	for _, f := range l.ctx {
		m[f.Key] = f.plain()
	}
	for _, f := range fields {
		m[f.Key] = f.plain()
	}
	c.AddLog(level, msg, m, caller)
}

func shortCaller(file string, line int) string {
	return filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file) + ":" + fmt.Sprint(line)
}

// AddCollector attaches a collector for this logger and every child,
// replacing and closing any previous one.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if old := l.collector.Swap(NewLogCollector(config)); old != nil {
		old.Close()
	}
}

// RemoveCollector detaches the collector and flushes what it holds.
func (l *Logger) RemoveCollector() {
	if old := l.collector.Swap(nil); old != nil {
		old.Close()
	}
}

type kind uint8

const (
	kindAny kind = iota
	kindString
	kindInt
	kindFloat
	kindBool
	kindError
)

// Field is one key/value pair of a log line.
type Field struct {
	Key   string
	Value interface{}
	kind  kind
}

func (f Field) addToEvent(ev *zerolog.Event) {
	switch f.kind {
	case kindString:
		ev.Str(f.Key, f.Value.(string))
	case kindInt:
		ev.Int64(f.Key, f.Value.(int64))
	case kindFloat:
		ev.Float64(f.Key, f.Value.(float64))
	case kindBool:
		ev.Bool(f.Key, f.Value.(bool))
	case kindError:
		if err, _ := f.Value.(error); err != nil {
			ev.AnErr(f.Key, err)
		}
	default:
		ev.Interface(f.Key, f.Value)
	}
}

func (f Field) addToContext(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString:
		return c.Str(f.Key, f.Value.(string))
	case kindInt:
		return c.Int64(f.Key, f.Value.(int64))
	default:
		return c.Interface(f.Key, f.plain())
	}
}

// plain is the JSON-friendly value handed to the collector.
func (f Field) plain() interface{} {
	if f.kind == kindError {
		if err, _ := f.Value.(error); err != nil {
			return err.Error()
		}
		return nil
	}
	if f.kind == kindInt {
		return int(f.Value.(int64))
	}
	return f.Value
}

func String(key, value string) Field { return Field{Key: key, Value: value, kind: kindString} }
func Int(key string, value int) Field { return Field{Key: key, Value: int64(value), kind: kindInt} }
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value, kind: kindInt}
}
func Float64(key string, value float64) Field { return Field{Key: key, Value: value, kind: kindFloat} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value, kind: kindBool} }
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }
func Error(err error) Field                   { return Field{Key: "error", Value: err, kind: kindError} }

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}
