package student_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/student"
	"github.com/keemdrivingschool/keem/tests"
)

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	first := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))
	second := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("John", "john@example.com", "Mufulira", "class-c"))
	at := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	st, created, err := env.StudentSvc.Enroll(ctx, student.Enrollment{ApplicationID: first.ID, Course: first.Course, Branch: first.Branch, EnrolledAt: at})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, fmt.Sprintf("STU-202403%04d", first.ID), st.StudentNumber)
	assert.Equal(t, student.StatusActive, st.Status)
	assert.Equal(t, student.PaymentPending, st.PaymentStatus)
	assert.Equal(t, student.Money(0), st.TotalFee)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), st.EnrollmentDate)
	assert.Equal(t, "Grace", st.FirstName)

	// once per application
	again, created, err := env.StudentSvc.Enroll(ctx, student.Enrollment{ApplicationID: first.ID, Course: first.Course, Branch: first.Branch, EnrolledAt: at.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, st.ID, again.ID)

	// the number of the second application is taken: suffixed
	taken := fmt.Sprintf("STU-202403%04d", second.ID)
	third := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Ruth", "ruth@example.com", "Luanshya", "class-b"))
	_, err = env.StudentRepo.CreateStudent(ctx, student.Student{
		StudentNumber: taken, ApplicationID: third.ID, EnrollmentDate: at, Status: student.StatusActive,
		PaymentStatus: student.PaymentPending, Course: third.Course, Branch: third.Branch, CreatedAt: at, UpdatedAt: at,
	})
	require.NoError(t, err)
	st2, created, err := env.StudentSvc.Enroll(ctx, student.Enrollment{ApplicationID: second.ID, Course: second.Course, Branch: second.Branch, EnrolledAt: at})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, taken+"-2", st2.StudentNumber)
}

func TestService_payments(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	boss := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Boss", "boss@keem.zm", testutil.DefaultPassword, admin.RoleSuperAdmin, core.BranchBoth, true))
	manager := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Manager", "manager@keem.zm", testutil.DefaultPassword, admin.RoleAdmin, core.BranchMufulira, true))
	staff := testutil.Principal(t, testutil.CreateAdmin(t, env.AdminRepo, "Staff", "staff@keem.zm", testutil.DefaultPassword, admin.RoleStaff, core.BranchBoth, true))

	app := testutil.SubmitApplication(t, env.ApplicationSvc, testutil.NewApplicationData("Grace", "grace@example.com", "Luanshya", "class-b"))
	st := testutil.AcceptApplication(t, env.ApplicationSvc, boss, app)

	fee := student.Money(250000)
	st, err := env.StudentSvc.UpdateEnrollment(ctx, boss, st.ID, student.UpdateEnrollment{TotalFee: &fee})
	require.NoError(t, err)
	assert.Equal(t, student.PaymentPending, st.PaymentStatus)

	t.Run("access", func(t *testing.T) {
		np := student.NewPayment{Amount: 1000, Method: "cash"}
		_, _, err := env.StudentSvc.RecordPayment(ctx, staff, st.ID, np)
		assert.Equal(t, core.ErrPermissionDenied, err)
		_, _, err = env.StudentSvc.RecordPayment(ctx, manager, st.ID, np)
		assert.True(t, core.IsNotFound(err))
		_, _, err = env.StudentSvc.RecordPayment(ctx, boss, st.ID+1000, np)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("concurrent payments keep the balance", func(t *testing.T) {
		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := env.StudentSvc.RecordPayment(ctx, boss, st.ID, student.NewPayment{Amount: 10000, Method: "mobile_money"})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		payments, err := env.StudentSvc.Payments(ctx, boss, student.PaymentFilter{StudentID: st.ID})
		require.NoError(t, err)
		require.Len(t, payments, n)
		numbers := make(map[string]bool, n)
		for _, p := range payments {
			numbers[p.PaymentNumber] = true
		}
		assert.Len(t, numbers, n, "payment numbers must be unique")

		got, err := env.StudentSvc.Get(ctx, boss, st.ID)
		require.NoError(t, err)
		assert.Equal(t, student.Money(n*10000), got.AmountPaid)
		assert.Equal(t, student.PaymentPartial, got.PaymentStatus)
	})

	t.Run("reversal restores the balance", func(t *testing.T) {
		pay, updated, err := env.StudentSvc.RecordPayment(ctx, boss, st.ID, student.NewPayment{Amount: 150000, Method: "bank_transfer", Reference: "TT-1"})
		require.NoError(t, err)
		assert.Equal(t, student.PaymentPaid, updated.PaymentStatus)

		_, _, err = env.StudentSvc.ReversePayment(ctx, boss, pay.ID, "  ")
		assert.Error(t, err)
		_, _, err = env.StudentSvc.ReversePayment(ctx, manager, pay.ID, "wrong student")
		assert.True(t, core.IsNotFound(err))

		reversed, updated, err := env.StudentSvc.ReversePayment(ctx, boss, pay.ID, "bounced")
		require.NoError(t, err)
		assert.Equal(t, student.PaymentReversed, reversed.Status)
		assert.Contains(t, reversed.Notes, "reversed by Boss: bounced")
		assert.Equal(t, student.Money(100000), updated.AmountPaid)
		assert.Equal(t, student.PaymentPartial, updated.PaymentStatus)

		_, _, err = env.StudentSvc.ReversePayment(ctx, boss, pay.ID, "again")
		var verr *core.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}
