package main

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/notify"
	"github.com/keemdrivingschool/keem/services/logger"
)

type notifierMock struct {
	n        int
	outcomes []notify.Outcome
	err      error
	calls    int
}

func (m *notifierMock) NotifyPending(context.Context) (int, []notify.Outcome, error) {
	m.calls++
	return m.n, m.outcomes, m.err
}

type observerMock struct {
	outcomes []notify.Outcome
}

func (m *observerMock) ObserveNotifications(outcomes []notify.Outcome) {
	m.outcomes = append(m.outcomes, outcomes...)
}

func Test_scheduleJobs(t *testing.T) {
	conf := core.NewTestConfig()
	log := logsvc.NewConsoleLogger(io.Discard, conf)

	c, err := scheduleJobs(conf, &notifierMock{}, &observerMock{}, log)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	conf.Jobs.PendingDigestSpec = "every tuesday"
	_, err = scheduleJobs(conf, &notifierMock{}, &observerMock{}, log)
	assert.Error(t, err)
}

func Test_pendingDigestJob(t *testing.T) {
	conf := core.NewTestConfig()
	log := logsvc.NewConsoleLogger(io.Discard, conf)

	outcomes := []notify.Outcome{
		{Channel: notify.ChannelEmail, Recipient: "office@keem.zm", Delivered: true},
		{Channel: notify.ChannelWhatsApp, Recipient: "+260977000001", Delivered: false},
	}
	notifier := &notifierMock{n: 3, outcomes: outcomes}
	observer := &observerMock{}
	pendingDigestJob(notifier, observer, log, conf)()
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, outcomes, observer.outcomes)

	// failures are logged, nothing observed
	notifier = &notifierMock{err: errors.New("db down")}
	observer = &observerMock{}
	pendingDigestJob(notifier, observer, log, conf)()
	assert.Equal(t, 1, notifier.calls)
	assert.Empty(t, observer.outcomes)
}
