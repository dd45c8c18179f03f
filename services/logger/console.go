package logsvc

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/keemdrivingschool/keem/core"
)

// ConsoleLogger writes human readable logs, for local runs and tests.
type ConsoleLogger struct {
	zl zerolog.Logger
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(w io.Writer, conf *core.Config) *ConsoleLogger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Str("env", conf.Env).
		Logger()
	return &ConsoleLogger{zl: zl}
}

// event attaches the args: errors, extras and the acting person.
func (l ConsoleLogger) event(e *zerolog.Event, msg string, args []interface{}) {
	for _, arg := range args {
		switch v := arg.(type) {
		case core.LogPerson:
			id, name, _ := v.LogPerson()
			e = e.Str("person_id", id).Str("person", name)
		case error:
			e = e.Err(v)
		case map[string]interface{}:
			e = e.Fields(v)
		default:
			e = e.Interface("arg", v)
		}
	}
	e.Msg(msg)
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) { l.event(l.zl.Debug(), msg, args) }
func (l ConsoleLogger) Info(msg string, args ...interface{})  { l.event(l.zl.Info(), msg, args) }
func (l ConsoleLogger) Warn(msg string, args ...interface{})  { l.event(l.zl.Warn(), msg, args) }
func (l ConsoleLogger) Error(msg string, args ...interface{}) { l.event(l.zl.Error(), msg, args) }

func (l ConsoleLogger) Fatal(msg string, args ...interface{}) {
	l.event(l.zl.WithLevel(zerolog.FatalLevel), msg, args)
	os.Exit(1)
}
