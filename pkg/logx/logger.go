package logx

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func init() {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat
}

// source yields the zerolog root a Logger writes through. *Service is one;
// fixed wraps a logger that never changes.
type source interface {
	root() zerolog.Logger
}

type fixed struct{ zl zerolog.Logger }

func (f fixed) root() zerolog.Logger { return f.zl }

// Logger is a small value type around zerolog.
//
// A Logger obtained from a Service follows later Service.Apply calls. The
// zero Logger writes nothing; components check IsZero and swap in Nop.
type Logger struct {
	src     source
	fields  []Field
	limiter *rate.Limiter
}

// Nop returns a logger that never writes anything.
func Nop() Logger { return Logger{src: fixed{zerolog.Nop()}} }

// NewConsole returns a standalone human-readable logger on stdout.
func NewConsole(level string) Logger {
	return Logger{src: fixed{newRoot(consoleWriter(Stdout()), parseLevel(level, LevelInfo))}}
}

// New writes JSON lines to w.
func New(w io.Writer, level string) Logger {
	return Logger{src: fixed{newRoot(w, parseLevel(level, LevelInfo))}}
}

func (l Logger) IsZero() bool { return l.src == nil && len(l.fields) == 0 }

func (l Logger) zl() zerolog.Logger {
	if l.src == nil {
		return zerolog.Nop()
	}
	return l.src.root()
}

// Enabled reports whether a record at level would be written.
func (l Logger) Enabled(level Level) bool {
	return level >= l.zl().GetLevel()
}

// With returns a copy that adds fields to every record.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	l.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return l
}

// Sampled returns a copy that writes only while lim has tokens; the rest is
// dropped. Records below the level threshold never take a token. A nil lim
// turns sampling off.
func (l Logger) Sampled(lim *rate.Limiter) Logger {
	l.limiter = lim
	return l
}

func (l Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// write must stay exactly two frames below the caller for the caller field.
func (l Logger) write(level Level, msg string, fields []Field) {
	root := l.zl()
	e := root.WithLevel(level)
	if e == nil {
		return
	}
	if l.limiter != nil && !l.limiter.Allow() {
		e.Discard()
		return
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, group := range [2][]Field{l.fields, fields} {
		for _, f := range group {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}

func newRoot(w io.Writer, lvl Level) zerolog.Logger {
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: timeFormat,
		// caller is already file:line
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

// parseLevel accepts zerolog level names (any case) plus "warning".
func parseLevel(s string, def Level) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return def
	}
	return lvl
}
