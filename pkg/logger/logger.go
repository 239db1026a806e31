package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Config holds logger configuration
type Config struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer

	// File, when set and Output is nil, sends logs to a rotating file
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// Logger represents a structured logger
type Logger struct {
	level     Level
	format    string
	component string
	out       io.Writer
	logger    *log.Logger
	zl        *zap.Logger // json format only
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
		if cfg.File != "" {
			output = &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
			}
		}
	}

	return newLogger(parseLevel(cfg.Level), strings.ToLower(cfg.Format), "", output)
}

func newLogger(level Level, format, component string, out io.Writer) *Logger {
	l := &Logger{level: level, format: format, component: component, out: out}
	if format == "json" {
		l.zl = newJSONLogger(out, component)
	} else {
		prefix := ""
		if component != "" {
			prefix = fmt.Sprintf("[%s] ", component)
		}
		l.logger = log.New(out, prefix, log.LstdFlags)
	}
	return l
}

// WithComponent creates a child logger with a component prefix
func (l *Logger) WithComponent(component string) *Logger {
	return newLogger(l.level, l.format, component, l.out)
}

// newJSONLogger writes one JSON object per line. Level filtering is done
// by Logger, so the core accepts everything.
func newJSONLogger(out io.Writer, component string) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(out), zapcore.DebugLevel))
	if component != "" {
		zl = zl.With(zap.String("component", component))
	}
	return zl
}

// Close releases the rotating log file, if any
func (l *Logger) Close() error {
	if l.zl != nil {
		_ = l.zl.Sync()
	}
	if lj, ok := l.out.(*lumberjack.Logger); ok {
		return lj.Close()
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

// Enabled reports whether messages at level are written
func (l *Logger) Enabled(level Level) bool {
	return l.level <= level
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}
	if l.format == "json" {
		l.logJSON(level, msg, fields)
		return
	}

	if len(fields) == 0 {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}

	var fieldStrs []string
	for _, f := range fields {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}

	l.logger.Printf("[%s] %s %s", level, msg, strings.Join(fieldStrs, " "))
}

func (l *Logger) logJSON(level Level, msg string, fields []Field) {
	zf := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		zf = append(zf, zapField(f))
	}
	switch level {
	case DebugLevel:
		l.zl.Debug(msg, zf...)
	case InfoLevel:
		l.zl.Info(msg, zf...)
	case WarnLevel:
		l.zl.Warn(msg, zf...)
	default:
		l.zl.Error(msg, zf...)
	}
}

func zapField(f Field) zap.Field {
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case uint64:
		return zap.Uint64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}

func parseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field constructors

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an int field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Uint64 creates a uint64 field
func Uint64(key string, val uint64) Field {
	return Field{Key: key, Value: val}
}

// Bool creates a bool field
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Float64 creates a float64 field
func Float64(key string, val float64) Field {
	return Field{Key: key, Value: val}
}

// Duration creates a duration field
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val.String()}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field with any value
func Any(key string, val interface{}) Field {
	return Field{Key: key, Value: val}
}
