package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName, "storage": conf.Storage.Backend})
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is a log call with its args sorted out:
// the first error is reported, the first user.User is the person, fields are merged into the custom data.
type entry struct {
	msg    string
	err    error
	person *user.User
	fields core.LogFields
	extra  []interface{}
}

func newEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg, fields: make(core.LogFields)}
	for _, arg := range args {
		switch a := arg.(type) {
		case nil:
		case user.User:
			if e.person == nil {
				usr := a
				e.person = &usr
			}
		case core.LogFields:
			for k, v := range a {
				e.fields[k] = v
			}
		case map[string]interface{}:
			for k, v := range a {
				e.fields[k] = v
			}
		case error:
			if e.err == nil {
				e.err = a
			} else {
				e.extra = append(e.extra, a)
			}
		default:
			e.extra = append(e.extra, a)
		}
	}
	return e
}

// custom is the rollbar custom data of the entry, rollbar only keeps one map per item.
func (e entry) custom() map[string]interface{} {
	custom := make(map[string]interface{}, len(e.fields)+2)
	for k, v := range e.fields {
		custom[k] = v
	}
	if e.person != nil && len(e.person.Roles) > 0 {
		custom["roles"] = e.person.Roles
	}
	if len(e.extra) > 0 {
		custom["args"] = fmt.Sprint(e.extra...)
	}
	return custom
}

func (e entry) rollbarArgs() []interface{} {
	args := []interface{}{e.msg}
	if e.err != nil {
		args = append(args, e.err)
	}
	if custom := e.custom(); len(custom) > 0 {
		args = append(args, custom)
	}
	return args
}

// String is the printed line: msg followed by the user & the sorted fields as key=value.
func (e entry) String() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if e.person != nil {
		fmt.Fprintf(&b, " user=%s", e.person.Username)
	}
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.fields[k])
	}
	return b.String()
}

func (l RollbarLogger) log(report func(...interface{}), msg string, args []interface{}) {
	e := newEntry(msg, args)
	if e.person != nil {
		rollbar.SetPerson(e.person.ID, e.person.Username, e.person.Email)
	} else {
		rollbar.ClearPerson()
	}
	report(e.rollbarArgs()...)

	l.std.Println(e.String())
	if e.err != nil {
		l.std.Printf("%+v\n", e.err)
	}
	for _, arg := range e.extra {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.Debug, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.Info, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.Warning, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.Error, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.Critical, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
