package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"

	"github.com/keemdrivingschool/keem/core"
)

// RollbarLogger reports to Rollbar and echoes every entry on std.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetServerRoot("github.com/keemdrivingschool/keem")
	rollbar.SetStackTracer(rollbarerrors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for the queued items to be sent.
func (l RollbarLogger) Close() {
	rollbar.Close()
}

// rollbarArgs turns the args of a log call into rollbar's: msg, the error, custom fields.
// The first core.LogPerson becomes the person of the item.
// Transport failures add their channel and recipient to the custom fields.
func rollbarArgs(msg string, args []interface{}) ([]interface{}, core.LogPerson) {
	var (
		person core.LogPerson
		extras map[string]interface{}
	)
	addExtra := func(k string, v interface{}) {
		if extras == nil {
			extras = make(map[string]interface{})
		}
		extras[k] = v
	}

	out := []interface{}{msg}
	for _, arg := range args {
		switch v := arg.(type) {
		case core.LogPerson:
			if person == nil {
				person = v
			}
		case *core.TransportError:
			addExtra("channel", v.Channel)
			addExtra("recipient", v.Recipient)
			out = append(out, error(v))
		case map[string]interface{}:
			for k, val := range v {
				addExtra(k, val)
			}
		default:
			out = append(out, v)
		}
	}
	if extras != nil {
		out = append(out, extras)
	}
	return out, person
}

func (l RollbarLogger) send(level, msg string, args []interface{}) {
	items, person := rollbarArgs(msg, args)
	if person != nil {
		id, name, email := person.LogPerson()
		rollbar.SetPerson(id, name, email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, items...)

	l.std.Println("[" + level + "] " + msg)
	for _, item := range items[1:] {
		l.std.Printf("%+v\n", item)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.send(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.send(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.send(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.send(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.send(rollbar.CRIT, msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
