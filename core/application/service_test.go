package application_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/notify"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
	"github.com/keemdrivingschool/keem/tests"
)

type failingEnroller struct{}

func (failingEnroller) Enroll(context.Context, student.Enrollment) (student.Student, bool, error) {
	return student.Student{}, false, errors.New("enrollment unavailable")
}

func TestService_Submit(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	na := testutil.NewApplicationData(" Grace ", "Grace@Example.com", "luanshya", "class-b")
	app, err := env.ApplicationSvc.Submit(ctx, na, nil)
	require.NoError(t, err)
	assert.Regexp(t, `^APP-\d{6}-[0-9A-F]{8}$`, app.ApplicationNumber)
	assert.Equal(t, application.StatusPending, app.Status)
	assert.Equal(t, "Grace", app.FirstName)
	assert.Equal(t, "grace@example.com", app.Email)
	assert.Equal(t, core.BranchLuanshya, app.Branch)
	assert.Nil(t, app.ReviewedBy)

	// intake sends nothing
	assert.Empty(t, env.Mail.SentMessages())
	assert.Empty(t, env.WhatsApp.SentMessages())

	bad := testutil.NewApplicationData("Grace", "grace@example.com", "Ndola", "class-b")
	_, err = env.ApplicationSvc.Submit(ctx, bad, nil)
	require.Error(t, err)
	apps, err := env.ApplicationRepo.FilterApplications(ctx, application.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestService_Transition(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	boss := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Boss", "boss@keem.zm", testutil.DefaultPassword, admin.RoleSuperAdmin, core.BranchBoth, true))
	staff := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Chanda", "chanda@keem.zm", testutil.DefaultPassword, admin.RoleStaff, core.BranchMufulira, true))

	now := time.Date(2024, 7, 9, 8, 0, 0, 0, time.UTC)
	application.NowFunc = func() time.Time { return now }
	defer func() { application.NowFunc = time.Now }()

	app := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))

	t.Run("out of branch", func(t *testing.T) {
		_, err := env.ApplicationSvc.Transition(ctx, staff, app.ID, "reviewing", "")
		assert.True(t, core.IsNotFound(err))
		_, err = env.ApplicationSvc.Get(ctx, staff, app.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("reviewing", func(t *testing.T) {
		res, err := env.ApplicationSvc.Transition(ctx, boss, app.ID, "Reviewing", "documents checked")
		require.NoError(t, err)
		assert.Equal(t, application.StatusPending, res.Previous)
		assert.Equal(t, application.StatusReviewing, res.Application.Status)
		assert.Equal(t, boss.AdminID, *res.Application.ReviewedBy)
		assert.Equal(t, now, *res.Application.ReviewedAt)
		assert.Equal(t, "[2024-07-09 08:00 UTC] Boss: documents checked", res.Application.AdminNotes)
		assert.Nil(t, res.Student)
		assert.Len(t, res.Notifications, 2)
		assert.Empty(t, res.Warnings())

		sent := env.WhatsApp.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "+260977123456", sent[0].To)
		assert.Contains(t, sent[0].Body, "Under review")
		assert.Contains(t, sent[0].Body, "documents checked")
	})

	t.Run("enrollment failure rolls back", func(t *testing.T) {
		env.ResetOutboxes()
		svc := application.NewService(application.Deps{
			Repo:     env.ApplicationRepo,
			Tx:       env.DB,
			Students: failingEnroller{},
			Settings: env.SettingsSvc,
			Validate: env.Validate,
			Logger:   env.Logger,
			Conf:     env.Conf,
		})
		_, err := svc.Transition(ctx, boss, app.ID, "accepted", "welcome")
		require.Error(t, err)

		got, err := env.ApplicationSvc.Get(ctx, boss, app.ID)
		require.NoError(t, err)
		assert.Equal(t, application.StatusReviewing, got.Status)
		assert.NotContains(t, got.AdminNotes, "welcome")
		assert.Empty(t, env.Mail.SentMessages())
	})

	t.Run("accepted", func(t *testing.T) {
		env.ResetOutboxes()
		res, err := env.ApplicationSvc.Transition(ctx, boss, app.ID, "accepted", "")
		require.NoError(t, err)
		require.NotNil(t, res.Student)
		assert.True(t, res.StudentCreated)
		assert.Equal(t, fmt.Sprintf("STU-202407%04d", app.ID), res.Student.StudentNumber)
		assert.Equal(t, "[2024-07-09 08:00 UTC] Boss: documents checked", res.Application.AdminNotes)

		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		require.Len(t, sent[0].Attachments, 1)
		assert.Equal(t, "application/pdf", sent[0].Attachments[0].ContentType)

		// same status again: notified again, no second student
		env.ResetOutboxes()
		again, err := env.ApplicationSvc.Transition(ctx, boss, app.ID, "accepted", "")
		require.NoError(t, err)
		assert.False(t, again.StudentCreated)
		assert.Equal(t, res.Student.ID, again.Student.ID)
		assert.Len(t, env.Mail.SentMessages(), 1)
		assert.Len(t, env.WhatsApp.SentMessages(), 1)
	})

	t.Run("terminal", func(t *testing.T) {
		_, err := env.ApplicationSvc.Transition(ctx, boss, app.ID, "rejected", "")
		assert.EqualError(t, err, "status: cannot change status from accepted to rejected")
	})

	t.Run("notification failures are warnings", func(t *testing.T) {
		other := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("John", "john@example.com", "Mufulira", "class-c"))
		env.Mail.SetFailing(true)
		env.WhatsApp.SetFailing(true)
		defer env.ResetOutboxes()

		res, err := env.ApplicationSvc.Transition(ctx, staff, other.ID, "rejected", "incomplete documents")
		require.NoError(t, err)
		assert.Equal(t, application.StatusRejected, res.Application.Status)
		assert.ElementsMatch(t, []string{
			"email notification to john@example.com failed",
			"whatsapp notification to 0977123456 failed",
		}, res.Warnings())
	})
}

func TestService_Transition_concurrentAccept(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	boss := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Boss", "boss@keem.zm", testutil.DefaultPassword, admin.RoleSuperAdmin, core.BranchBoth, true))
	app := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[int]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.ApplicationSvc.Transition(ctx, boss, app.ID, "accepted", "")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.StudentCreated {
				created++
			}
			ids[res.Student.ID] = true
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func TestService_Annotate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	boss := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Boss", "boss@keem.zm", testutil.DefaultPassword, admin.RoleSuperAdmin, core.BranchBoth, true))
	app := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))
	testutil.AcceptApplication(t, env.ApplicationSvc, boss, app)
	env.ResetOutboxes()

	_, err := env.ApplicationSvc.Annotate(ctx, boss, app.ID, " ")
	assert.Error(t, err)

	got, err := env.ApplicationSvc.Annotate(ctx, boss, app.ID, "paid the deposit")
	require.NoError(t, err)
	assert.Equal(t, application.StatusAccepted, got.Status)
	assert.True(t, strings.HasSuffix(got.AdminNotes, "Boss: paid the deposit"))
	assert.Empty(t, env.Mail.SentMessages())
}

func TestService_Lookup(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	app := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))

	view, err := env.ApplicationSvc.Lookup(ctx, strings.ToLower(app.ApplicationNumber), " GRACE@example.com")
	require.NoError(t, err)
	assert.Equal(t, app.ApplicationNumber, view.ApplicationNumber)

	for _, email := range []string{"", "john@example.com"} {
		_, err = env.ApplicationSvc.Lookup(ctx, app.ApplicationNumber, email)
		assert.Equal(t, application.ErrNotFound, err)
	}
	_, err = env.ApplicationSvc.Lookup(ctx, "APP-000000-00000000", "grace@example.com")
	assert.True(t, core.IsNotFound(err))
}

func TestService_NotifyPending(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	boss := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Boss", "boss@keem.zm", testutil.DefaultPassword, admin.RoleSuperAdmin, core.BranchBoth, true))

	n, outcomes, err := env.ApplicationSvc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, outcomes)

	testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))
	testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("John", "john@example.com", "Mufulira", "class-c"))

	// no admin contact configured
	n, outcomes, err = env.ApplicationSvc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, outcomes)

	_, err = env.SettingsSvc.Update(ctx, boss, settings.KeyAdminNotifyEmail, "office@keem.zm")
	require.NoError(t, err)
	_, err = env.SettingsSvc.Update(ctx, boss, settings.KeyAdminNotifyWhatsApp, "0977000001")
	require.NoError(t, err)

	n, outcomes, err = env.ApplicationSvc.NotifyPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []notify.Outcome{
		{Channel: notify.ChannelEmail, Recipient: "office@keem.zm", Delivered: true},
		{Channel: notify.ChannelWhatsApp, Recipient: "0977000001", Delivered: true},
	}, outcomes)

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "2 application(s) pending review")
	assert.Contains(t, sent[0].TextContent, "Grace")
	assert.Contains(t, sent[0].TextContent, "John")
	assert.Equal(t, "+260977000001", env.WhatsApp.SentMessages()[0].To)
}
