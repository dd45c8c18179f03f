package student

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
)

const maxNumberAttempts = 100

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("student")
	ErrPaymentNotFound = core.NewNotFoundError("payment")
	ErrLessonNotFound  = core.NewNotFoundError("lesson")

	NowFunc = time.Now // mockable

	orderingFields = []string{"created_at", "enrollment_date", "student_number", "status", "payment_status", "branch", "course"}

	// roles allowed to handle money
	financeRoles = []admin.Role{admin.RoleSuperAdmin, admin.RoleAdmin}
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, id int) (Student, error)
		GetStudentForUpdate(ctx context.Context, id int) (Student, error)
		GetStudentByApplication(ctx context.Context, applicationID int) (Student, error)
		StudentNumberExists(ctx context.Context, number string) (bool, error)
		FilterStudents(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, id int) (Payment, error)
		GetPaymentForUpdate(ctx context.Context, id int) (Payment, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		FilterPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
		CountPayments(ctx context.Context, studentID int) (int, error)
		SumCompletedPayments(ctx context.Context, studentID int) (Money, error)

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		GetLesson(ctx context.Context, id int) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
		FilterLessons(ctx context.Context, studentID int) ([]Lesson, error)
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		validate *validator.Validate
	}
)

func NewService(repo Repository, tx core.Transactor, validate *validator.Validate) *Service {
	return &Service{repo: repo, tx: tx, validate: validate}
}

// Enroll creates the Student of an accepted application, unless it already exists.
// created reports whether a new Student was created.
// It joins the transaction of ctx, if any.
func (svc *Service) Enroll(ctx context.Context, e Enrollment) (st Student, created bool, err error) {
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		st, err = svc.repo.GetStudentByApplication(ctx, e.ApplicationID)
		if err == nil {
			return nil
		} else if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding student by application")
		}

		number, err := svc.nextStudentNumber(ctx, e.ApplicationID, e.EnrolledAt)
		if err != nil {
			return err
		}
		enrolledAt := e.EnrolledAt.UTC()
		st = Student{
			StudentNumber:  number,
			ApplicationID:  e.ApplicationID,
			EnrollmentDate: time.Date(enrolledAt.Year(), enrolledAt.Month(), enrolledAt.Day(), 0, 0, 0, 0, time.UTC),
			Status:         StatusActive,
			PaymentStatus:  PaymentPending,
			Course:         e.Course,
			Branch:         e.Branch,
			CreatedAt:      enrolledAt,
			UpdatedAt:      enrolledAt,
		}
		if e.CreatedBy != 0 {
			st.CreatedBy = core.IntPtr(e.CreatedBy)
		}
		if st, err = svc.repo.CreateStudent(ctx, st); err != nil {
			return errors.Wrap(err, "creating student")
		}
		created = true
		return nil
	})
	if err != nil {
		return Student{}, false, err
	}
	return st, created, nil
}

// nextStudentNumber returns STU-YYYYMM{application id:04d}, suffixed with -N on collision.
func (svc *Service) nextStudentNumber(ctx context.Context, applicationID int, at time.Time) (string, error) {
	base := fmt.Sprintf("STU-%s%04d", at.UTC().Format("200601"), applicationID)
	number := base
	for i := 2; i <= maxNumberAttempts+1; i++ {
		exists, err := svc.repo.StudentNumberExists(ctx, number)
		if err != nil {
			return "", errors.Wrap(err, "checking student number")
		}
		if !exists {
			return number, nil
		}
		number = fmt.Sprintf("%s-%d", base, i)
	}
	return "", core.NewConstraintError("student_number_key", errors.Errorf("no free student number for %s", base))
}

func (svc *Service) Get(ctx context.Context, p admin.Principal, id int) (Student, error) {
	if err := p.Require(); err != nil {
		return Student{}, err
	}
	st, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !p.CanAccess(st.Branch) {
		return Student{}, ErrNotFound
	}
	return st, nil
}

func (svc *Service) Filter(ctx context.Context, p admin.Principal, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	if err := filter.Clean(); err != nil {
		return nil, err
	}
	branch, ok := p.ScopeBranch(core.Branch(filter.Branch))
	if !ok {
		return []Student{}, nil
	}
	filter.Branch = string(branch)
	return svc.repo.FilterStudents(ctx, filter, core.CleanOrderings(ordering, orderingFields...)...)
}

// UpdateEnrollment changes the fee, course dates or status of a Student and re-derives its payment status.
func (svc *Service) UpdateEnrollment(ctx context.Context, p admin.Principal, id int, ue UpdateEnrollment) (Student, error) {
	if err := p.Require(financeRoles...); err != nil {
		return Student{}, err
	}
	if err := ue.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	var st Student
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if st, err = svc.lockStudent(ctx, p, id); err != nil {
			return err
		}

		if ue.TotalFee != nil {
			st.TotalFee = *ue.TotalFee
		}
		if ue.CourseStartDate != "" {
			d, _ := core.ParseDate(ue.CourseStartDate) // validated
			st.CourseStartDate = &d
		}
		if ue.CourseEndDate != "" {
			d, _ := core.ParseDate(ue.CourseEndDate) // validated
			st.CourseEndDate = &d
		}
		if st.CourseStartDate != nil && st.CourseEndDate != nil && st.CourseEndDate.Before(*st.CourseStartDate) {
			return core.NewFieldError("course_end_date", "course cannot end before it starts")
		}
		if ue.Status != "" {
			st.Status = Status(ue.Status)
		}

		now := NowFunc().UTC()
		st.PaymentStatus = DerivePaymentStatus(st.TotalFee, st.AmountPaid, st.CourseEndDate, now)
		st.UpdatedAt = now
		st, err = svc.repo.UpdateStudent(ctx, st)
		return errors.Wrap(err, "updating student")
	})
	return st, err
}

func (svc *Service) lockStudent(ctx context.Context, p admin.Principal, id int) (Student, error) {
	st, err := svc.repo.GetStudentForUpdate(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !p.CanAccess(st.Branch) {
		return Student{}, ErrNotFound
	}
	return st, nil
}

// syncPayments recomputes amount_paid from the completed payments of st, then its payment status.
// st must be locked by the current transaction.
func (svc *Service) syncPayments(ctx context.Context, st Student) (Student, error) {
	paid, err := svc.repo.SumCompletedPayments(ctx, st.ID)
	if err != nil {
		return Student{}, errors.Wrap(err, "summing payments")
	}
	now := NowFunc().UTC()
	st.AmountPaid = paid
	st.PaymentStatus = DerivePaymentStatus(st.TotalFee, paid, st.CourseEndDate, now)
	st.UpdatedAt = now
	st, err = svc.repo.UpdateStudent(ctx, st)
	return st, errors.Wrap(err, "updating student")
}

// RecordPayment appends a completed Payment to the ledger of a Student and updates its balance.
func (svc *Service) RecordPayment(ctx context.Context, p admin.Principal, studentID int, np NewPayment) (Payment, Student, error) {
	if err := p.Require(financeRoles...); err != nil {
		return Payment{}, Student{}, err
	}
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, Student{}, err
	}

	var (
		pay Payment
		st  Student
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if st, err = svc.lockStudent(ctx, p, studentID); err != nil {
			return err
		}

		count, err := svc.repo.CountPayments(ctx, st.ID)
		if err != nil {
			return errors.Wrap(err, "counting payments")
		}
		now := NowFunc().UTC()
		payDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if np.PaymentDate != "" {
			payDate, _ = core.ParseDate(np.PaymentDate) // validated
		}

		pay = Payment{
			PaymentNumber: fmt.Sprintf("PAY-%s%03d-%03d", now.Format("200601"), st.ID, count+1),
			StudentID:     st.ID,
			Amount:        np.Amount,
			Method:        PaymentMethod(np.Method),
			Reference:     np.Reference,
			Status:        PaymentCompleted,
			PaymentDate:   payDate,
			ReceivedBy:    core.IntPtr(p.AdminID),
			Notes:         np.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if pay, err = svc.repo.CreatePayment(ctx, pay); err != nil {
			return errors.Wrap(err, "creating payment")
		}
		st, err = svc.syncPayments(ctx, st)
		return err
	})
	if err != nil {
		return Payment{}, Student{}, err
	}
	return pay, st, nil
}

// ReversePayment marks a completed Payment as reversed and updates the balance of its Student.
func (svc *Service) ReversePayment(ctx context.Context, p admin.Principal, paymentID int, reason string) (Payment, Student, error) {
	if err := p.Require(financeRoles...); err != nil {
		return Payment{}, Student{}, err
	}
	reason = core.CleanString(reason)
	if reason == "" {
		return Payment{}, Student{}, core.NewFieldError("reason", "this field is required")
	}

	var (
		pay Payment
		st  Student
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := svc.repo.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		// lock the student first, like RecordPayment
		if st, err = svc.lockStudent(ctx, p, found.StudentID); err != nil {
			if core.IsNotFound(err) {
				return ErrPaymentNotFound
			}
			return err
		}
		if pay, err = svc.repo.GetPaymentForUpdate(ctx, paymentID); err != nil {
			return err
		}
		if pay.Status == PaymentReversed {
			return core.NewFieldError("status", "payment already reversed")
		}

		now := NowFunc().UTC()
		pay.Status = PaymentReversed
		note := fmt.Sprintf("[%s] reversed by %s: %s", now.Format("2006-01-02 15:04 UTC"), p.Name, reason)
		if pay.Notes != "" {
			pay.Notes += "\n"
		}
		pay.Notes += note
		pay.UpdatedAt = now
		if pay, err = svc.repo.UpdatePayment(ctx, pay); err != nil {
			return errors.Wrap(err, "updating payment")
		}
		st, err = svc.syncPayments(ctx, st)
		return err
	})
	if err != nil {
		return Payment{}, Student{}, err
	}
	return pay, st, nil
}

func (svc *Service) Payments(ctx context.Context, p admin.Principal, filter PaymentFilter) ([]Payment, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	if err := filter.Clean(); err != nil {
		return nil, err
	}
	branch, ok := p.ScopeBranch(core.Branch(filter.Branch))
	if !ok {
		return []Payment{}, nil
	}
	filter.Branch = string(branch)
	return svc.repo.FilterPayments(ctx, filter)
}

// ScheduleLesson plans a Lesson for an active Student.
func (svc *Service) ScheduleLesson(ctx context.Context, p admin.Principal, studentID int, nl NewLesson) (Lesson, error) {
	if err := nl.Validate(svc.validate); err != nil {
		return Lesson{}, err
	}
	st, err := svc.Get(ctx, p, studentID)
	if err != nil {
		return Lesson{}, err
	}
	if st.Status != StatusActive {
		return Lesson{}, core.NewFieldError("student", "lessons can only be scheduled for active students")
	}

	now := NowFunc().UTC()
	l := Lesson{
		StudentID:       st.ID,
		InstructorID:    nl.InstructorID,
		Title:           nl.Title,
		LessonType:      LessonType(nl.LessonType),
		ScheduledAt:     nl.ScheduledAt.UTC(),
		DurationMinutes: nl.DurationMinutes,
		Status:          LessonScheduled,
		Notes:           nl.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	l, err = svc.repo.CreateLesson(ctx, l)
	if core.IsConstraint(err) {
		return Lesson{}, core.NewFieldError("instructor_id", "unknown instructor")
	}
	return l, errors.Wrap(err, "creating lesson")
}

func (svc *Service) Lessons(ctx context.Context, p admin.Principal, studentID int) ([]Lesson, error) {
	st, err := svc.Get(ctx, p, studentID)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterLessons(ctx, st.ID)
}

func (svc *Service) SetLessonStatus(ctx context.Context, p admin.Principal, lessonID int, status string) (Lesson, error) {
	if err := p.Require(); err != nil {
		return Lesson{}, err
	}
	ls := LessonStatus(core.CleanString(status, true /* lower */))
	if !ls.IsValid() {
		return Lesson{}, core.NewFieldError("status", "invalid lesson status")
	}
	l, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	if _, err = svc.Get(ctx, p, l.StudentID); err != nil {
		if core.IsNotFound(err) {
			return Lesson{}, ErrLessonNotFound
		}
		return Lesson{}, err
	}
	l.Status = ls
	l.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateLesson(ctx, l)
}

// Payment returns a payment and its Student. Payments of students outside the branch of p are not found.
func (svc *Service) Payment(ctx context.Context, p admin.Principal, id int) (Payment, Student, error) {
	if err := p.Require(); err != nil {
		return Payment{}, Student{}, err
	}
	pay, err := svc.repo.GetPayment(ctx, id)
	if err != nil {
		return Payment{}, Student{}, err
	}
	st, err := svc.Get(ctx, p, pay.StudentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Payment{}, Student{}, ErrPaymentNotFound
		}
		return Payment{}, Student{}, err
	}
	return pay, st, nil
}
