package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/student"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestTransactor_WithinTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE news").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
			_, err := repository{db: db}.exec(ctx).ExecContext(ctx, "UPDATE news SET is_active = false")
			return err
		})
		assert.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error { return boom })
		assert.Equal(t, boom, err)
	})

	t.Run("nested calls join", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		tx := NewTransactor(db)
		calls := 0
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			return tx.WithinTx(ctx, func(ctx context.Context) error {
				calls++
				return nil
			})
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error { panic("boom") })
		})
	})
}

func TestTranslateErr(t *testing.T) {
	notFound := core.NewNotFoundError("thing")

	assert.NoError(t, translateErr(nil, notFound, "msg"))

	err := translateErr(&pq.Error{Code: codeUniqueViolation, Constraint: "admin_email_key"}, nil, "msg")
	require.True(t, core.IsConstraint(err))
	assert.Equal(t, "admin_email_key", errors.Cause(err).(*core.ConstraintError).Constraint)

	err = translateErr(errors.New("conn reset"), notFound, "inserting thing")
	assert.EqualError(t, err, "inserting thing: conn reset")
	assert.False(t, core.IsNotFound(err))
}

func TestAdminRepository_GetAdminByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAdminRepository(db)
	query := regexp.QuoteMeta("SELECT * FROM admin WHERE email = $1")

	mock.ExpectQuery(query).
		WithArgs("ghost@keem.zm").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))
	_, err := repo.GetAdminByEmail(context.Background(), "ghost@keem.zm")
	assert.Equal(t, admin.ErrNotFound, err)

	mock.ExpectQuery(query).
		WithArgs("mwape@keem.zm").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "branch", "is_active"}).
			AddRow(3, "Mwape", "mwape@keem.zm", "staff", "Luanshya", true))
	a, err := repo.GetAdminByEmail(context.Background(), "mwape@keem.zm")
	require.NoError(t, err)
	assert.Equal(t, 3, a.ID)
	assert.Equal(t, core.BranchLuanshya, a.Branch)
	assert.True(t, a.IsActive)
}

func TestApplicationRepository_CreateApplication_DuplicateNumber(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO application .* RETURNING \\*").
		WillReturnError(&pq.Error{Code: codeUniqueViolation, Constraint: "application_number_key"})

	_, err := NewApplicationRepository(db).CreateApplication(context.Background(), application.Application{
		ApplicationNumber: "APP-202403-0A1B2C3D",
		Status:            application.StatusPending,
	})
	require.True(t, core.IsConstraint(err))
	assert.Equal(t, "application_number_key", errors.Cause(err).(*core.ConstraintError).Constraint)
}

func TestApplicationRepository_FilterApplications(t *testing.T) {
	db, mock := newMock(t)
	filter := application.QueryFilter{Status: "PENDING", Branch: "luanshya", DateFrom: "2024-03-01", DateTo: "2024-03-31"}
	require.NoError(t, filter.Clean())

	query := regexp.QuoteMeta("SELECT * FROM application WHERE status = $1 AND branch = $2 AND created_at >= $3 AND created_at < $4 ORDER BY created_at ASC")
	mock.ExpectQuery(query).
		WithArgs(
			"pending",
			"Luanshya",
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_number", "status", "branch"}).
			AddRow(1, "APP-202403-0A1B2C3D", "pending", "Luanshya"))

	apps, err := NewApplicationRepository(db).FilterApplications(
		context.Background(), filter, core.DBOrdering{Field: "created_at", Ascending: true},
	)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, application.StatusPending, apps[0].Status)
}

func TestApplicationRepository_CountByStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM application WHERE branch = $1 GROUP BY status")).
		WithArgs(core.BranchMufulira).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 4).
			AddRow("accepted", 2))

	counts, err := NewApplicationRepository(db).CountByStatus(context.Background(), core.BranchMufulira)
	require.NoError(t, err)
	assert.Equal(t, map[application.Status]int{application.StatusPending: 4, application.StatusAccepted: 2}, counts)
}

func TestStudentRepository_SumCompletedPayments(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payment WHERE status = $1 AND student_id = $2")).
		WithArgs(student.PaymentCompleted, 9).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(150050))

	sum, err := NewStudentRepository(db).SumCompletedPayments(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, student.Money(150050), sum)
}

func TestStudentRepository_StudentNumberExists(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM student WHERE student_number = $1)")).
		WithArgs("STU-2024030001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := NewStudentRepository(db).StudentNumberExists(context.Background(), "STU-2024030001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStudentRepository_GetStudentForUpdate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT s.*, a.first_name, a.last_name, a.email, a.phone FROM student s JOIN application a ON a.id = s.application_id WHERE s.id = $1 FOR UPDATE OF s",
	)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewStudentRepository(db).GetStudentForUpdate(context.Background(), 5)
	assert.Equal(t, student.ErrNotFound, err)
}
