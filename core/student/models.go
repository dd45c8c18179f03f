package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
)

type (
	Status        string
	PaymentStatus string
)

// Statuses
const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
	StatusWithdrawn Status = "withdrawn"
)

// Payment statuses
const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

var Statuses = []Status{StatusActive, StatusCompleted, StatusSuspended, StatusWithdrawn}

func (s Status) IsValid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Student is the enrolled learner materialized from an accepted application.
// Name and contact fields are read from the application.
type Student struct {
	ID              int           `json:"id" db:"id"`
	StudentNumber   string        `json:"student_number" db:"student_number"`
	ApplicationID   int           `json:"application_id" db:"application_id"`
	EnrollmentDate  time.Time     `json:"enrollment_date" db:"enrollment_date"`
	CourseStartDate *time.Time    `json:"course_start_date" db:"course_start_date"`
	CourseEndDate   *time.Time    `json:"course_end_date" db:"course_end_date"`
	Status          Status        `json:"status" db:"status"`
	TotalFee        Money         `json:"total_fee" db:"total_fee"`
	AmountPaid      Money         `json:"amount_paid" db:"amount_paid"`
	PaymentStatus   PaymentStatus `json:"payment_status" db:"payment_status"`
	Course          string        `json:"course" db:"course"`
	Branch          core.Branch   `json:"branch" db:"branch"`
	CreatedBy       *int          `json:"created_by" db:"created_by"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`

	// from the application
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	Phone     string `json:"phone" db:"phone"`
}

func (s Student) FullName() string { return s.FirstName + " " + s.LastName }

func (s Student) Balance() Money { return s.TotalFee - s.AmountPaid }

// DerivePaymentStatus computes the payment status of a student from its fee and payments.
// An unpaid balance past the course end date is overdue.
// While no fee is set, any payment makes the status partial.
func DerivePaymentStatus(total, paid Money, courseEnd *time.Time, now time.Time) PaymentStatus {
	switch {
	case total > 0 && paid >= total:
		return PaymentPaid
	case total > 0 && courseEnd != nil && now.After(*courseEnd):
		return PaymentOverdue
	case paid > 0:
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// Enrollment holds what is needed to enroll the applicant of an accepted application.
type Enrollment struct {
	ApplicationID int
	Course        string
	Branch        core.Branch
	EnrolledAt    time.Time
	CreatedBy     int
}

// UpdateEnrollment defines what may be changed on a Student. Dates are YYYY-MM-DD.
type UpdateEnrollment struct {
	TotalFee        *Money `json:"total_fee" validate:"omitempty,min=0"`
	CourseStartDate string `json:"course_start_date" validate:"omitempty,date"`
	CourseEndDate   string `json:"course_end_date" validate:"omitempty,date"`
	Status          string `json:"status" validate:"omitempty,studentstatus"`
}

func (ue *UpdateEnrollment) Validate(validate *validator.Validate) error {
	ue.CourseStartDate = core.CleanString(ue.CourseStartDate)
	ue.CourseEndDate = core.CleanString(ue.CourseEndDate)
	ue.Status = core.CleanString(ue.Status, true /* lower */)
	return validate.Struct(ue)
}

type QueryFilter struct {
	Search        string `query:"search"`
	Status        string `query:"status"`
	PaymentStatus string `query:"payment_status"`
	Branch        string `query:"branch"`
	Course        string `query:"course"`
}

// Clean normalizes the filter and rejects values outside the closed enums.
func (qf *QueryFilter) Clean() error {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.PaymentStatus = core.CleanString(qf.PaymentStatus, true /* lower */)
	qf.Course = core.CleanString(qf.Course)
	if qf.Status != "" && !Status(qf.Status).IsValid() {
		return core.NewFieldError("status", "invalid status")
	}
	switch PaymentStatus(qf.PaymentStatus) {
	case "", PaymentPending, PaymentPartial, PaymentPaid, PaymentOverdue:
	default:
		return core.NewFieldError("payment_status", "invalid payment status")
	}
	if qf.Branch != "" {
		b, err := core.ParseBranch(qf.Branch)
		if err != nil {
			return err
		}
		qf.Branch = string(b)
	}
	return nil
}
