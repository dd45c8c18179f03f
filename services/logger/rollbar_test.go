package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
)

func Test_rollbarArgs(t *testing.T) {
	items, p := rollbarArgs("plain", nil)
	assert.Equal(t, []interface{}{"plain"}, items)
	assert.Nil(t, p)

	cause := errors.New("twilio: 21211 invalid 'To' number")
	terr := core.NewTransportError("whatsapp", "+260977123456", cause)
	items, p = rollbarArgs("whatsapp not sent", []interface{}{terr, person{}, map[string]interface{}{"application": "APP-202405-0A1B2C3D"}})

	require.Len(t, items, 3)
	assert.Equal(t, "whatsapp not sent", items[0])
	assert.Equal(t, terr, items[1])
	assert.Equal(t, map[string]interface{}{
		"channel":     "whatsapp",
		"recipient":   "+260977123456",
		"application": "APP-202405-0A1B2C3D",
	}, items[2])
	assert.Equal(t, person{}, p)
}
