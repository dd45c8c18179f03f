package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
)

type (
	PaymentMethod    string
	PaymentRowStatus string
)

// Payment methods
const (
	MethodCash         PaymentMethod = "cash"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodCheck        PaymentMethod = "check"
)

// Payment row statuses. A payment is never deleted, only reversed.
const (
	PaymentCompleted PaymentRowStatus = "completed"
	PaymentReversed  PaymentRowStatus = "reversed"
)

var PaymentMethods = []PaymentMethod{MethodCash, MethodMobileMoney, MethodBankTransfer, MethodCard, MethodCheck}

func (m PaymentMethod) IsValid() bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

type Payment struct {
	ID            int              `json:"id" db:"id"`
	PaymentNumber string           `json:"payment_number" db:"payment_number"`
	StudentID     int              `json:"student_id" db:"student_id"`
	Amount        Money            `json:"amount" db:"amount"`
	Method        PaymentMethod    `json:"method" db:"method"`
	Reference     string           `json:"reference" db:"reference"`
	Status        PaymentRowStatus `json:"status" db:"status"`
	PaymentDate   time.Time        `json:"payment_date" db:"payment_date"`
	ReceivedBy    *int             `json:"received_by" db:"received_by"`
	Notes         string           `json:"notes" db:"notes"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`

	// from the student
	StudentNumber string      `json:"student_number" db:"student_number"`
	Branch        core.Branch `json:"branch" db:"branch"`
}

// NewPayment contains information needed to record a Payment. PaymentDate defaults to today.
type NewPayment struct {
	Amount      Money  `json:"amount" validate:"required,gt=0"`
	Method      string `json:"method" validate:"required,paymentmethod"`
	Reference   string `json:"reference" validate:"max=100"`
	PaymentDate string `json:"payment_date" validate:"omitempty,date"`
	Notes       string `json:"notes" validate:"max=1000"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.Reference = core.CleanString(np.Reference)
	np.PaymentDate = core.CleanString(np.PaymentDate)
	np.Notes = core.CleanString(np.Notes)
	return validate.Struct(np)
}

type PaymentFilter struct {
	StudentID int    `query:"student_id"`
	Method    string `query:"method"`
	Status    string `query:"status"`
	Branch    string `query:"branch"`
	DateFrom  string `query:"date_from"`
	DateTo    string `query:"date_to"`

	dateFrom, dateTo time.Time
}

func (pf *PaymentFilter) Clean() error {
	pf.Method = core.CleanString(pf.Method, true /* lower */)
	pf.Status = core.CleanString(pf.Status, true /* lower */)
	if pf.Method != "" && !PaymentMethod(pf.Method).IsValid() {
		return core.NewFieldError("method", "invalid payment method")
	}
	switch PaymentRowStatus(pf.Status) {
	case "", PaymentCompleted, PaymentReversed:
	default:
		return core.NewFieldError("status", "invalid status")
	}
	if pf.Branch != "" {
		b, err := core.ParseBranch(pf.Branch)
		if err != nil {
			return err
		}
		pf.Branch = string(b)
	}
	var err error
	if pf.DateFrom != "" {
		if pf.dateFrom, err = core.ParseDate(pf.DateFrom); err != nil {
			return core.NewFieldError("date_from", "enter a valid date (YYYY-MM-DD)")
		}
	}
	if pf.DateTo != "" {
		if pf.dateTo, err = core.ParseDate(pf.DateTo); err != nil {
			return core.NewFieldError("date_to", "enter a valid date (YYYY-MM-DD)")
		}
	}
	return nil
}

// From returns the parsed lower date bound (zero when unset).
func (pf PaymentFilter) From() time.Time { return pf.dateFrom }

// To returns the parsed upper date bound, inclusive (zero when unset).
func (pf PaymentFilter) To() time.Time { return pf.dateTo }
