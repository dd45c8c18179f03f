package logsvc

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/keemdrivingschool/keem/core"
)

type person struct{}

func (person) LogPerson() (id, name, email string) { return "7", "Mwape", "mwape@keem.zm" }

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	conf := core.NewTestConfig()
	l := NewConsoleLogger(&buf, conf)

	l.Debug("hidden")
	assert.Empty(t, buf.String(), "debug is off")

	l.Error("sending email", errors.New("timeout"), map[string]interface{}{"channel": "email"}, person{})
	out := buf.String()
	assert.Contains(t, out, "sending email")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "Mwape")
	assert.Contains(t, out, "email")
}
