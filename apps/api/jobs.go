package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/keemdrivingschool/keem/apps/api/echo"
	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/notify"
)

type (
	pendingNotifier interface {
		NotifyPending(ctx context.Context) (int, []notify.Outcome, error)
	}

	outcomeObserver interface {
		ObserveNotifications(outcomes []notify.Outcome)
	}

	// cronLogger adapts core.Logger to cron.Logger
	cronLogger struct {
		logger core.Logger
	}
)

var (
	_ pendingNotifier = (*application.Service)(nil)
	_ outcomeObserver = (*echoapi.Metrics)(nil)
	_ cron.Logger     = cronLogger{}
)

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s %v: %v", msg, keysAndValues, err), err)
}

// scheduleJobs registers the periodic jobs. The returned scheduler is not started.
func scheduleJobs(conf *core.Config, notifier pendingNotifier, observer outcomeObserver, logger core.Logger) (*cron.Cron, error) {
	clog := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := c.AddFunc(conf.Jobs.PendingDigestSpec, pendingDigestJob(notifier, observer, logger, conf)); err != nil {
		return nil, errors.Wrapf(err, "scheduling pending digest %q", conf.Jobs.PendingDigestSpec)
	}
	return c, nil
}

// pendingDigestJob tells the admins how many applications await review.
func pendingDigestJob(notifier pendingNotifier, observer outcomeObserver, logger core.Logger, conf *core.Config) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*conf.Notify.Timeout)
		defer cancel()

		n, outcomes, err := notifier.NotifyPending(ctx)
		if err != nil {
			logger.Error(fmt.Sprintf("pending digest: %v", err), err)
			return
		}
		observer.ObserveNotifications(outcomes)
		if n > 0 {
			logger.Info(fmt.Sprintf("pending digest: %d application(s), %d notification(s)", n, len(outcomes)))
		}
	}
}
