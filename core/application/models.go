package application

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
)

type (
	Status string
	Gender string
)

// Statuses
const (
	StatusPending   Status = "pending"
	StatusReviewing Status = "reviewing"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Genders
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

var (
	Statuses = []Status{StatusPending, StatusReviewing, StatusAccepted, StatusRejected, StatusCancelled}

	statusLabels = map[Status]string{
		StatusPending:   "Pending",
		StatusReviewing: "Under review",
		StatusAccepted:  "Accepted",
		StatusRejected:  "Rejected",
		StatusCancelled: "Cancelled",
	}

	// legal status changes, besides keeping the current status
	transitions = map[Status][]Status{
		StatusPending:   {StatusReviewing, StatusAccepted, StatusRejected, StatusCancelled},
		StatusReviewing: {StatusAccepted, StatusRejected, StatusCancelled},
	}
)

// ParseStatus rejects any value outside the closed set of statuses.
// Case and surrounding spaces are normalized.
func ParseStatus(s string) (Status, error) {
	st := Status(core.CleanString(s, true /* lower */))
	if !st.IsValid() {
		return "", core.NewFieldError("status", "must be one of pending, reviewing, accepted, rejected or cancelled")
	}
	return st, nil
}

func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string { return statusLabels[s] }

// Terminal statuses: accepted, rejected, cancelled.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

// CanTransitionTo reports whether an application in status s may be moved to next.
// Keeping the current status is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return next.IsValid()
	}
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

type Application struct {
	ID                 int         `json:"id" db:"id"`
	ApplicationNumber  string      `json:"application_number" db:"application_number"`
	Status             Status      `json:"status" db:"status"`
	FirstName          string      `json:"first_name" db:"first_name"`
	LastName           string      `json:"last_name" db:"last_name"`
	Email              string      `json:"email" db:"email"`
	Phone              string      `json:"phone" db:"phone"`
	WhatsApp           string      `json:"whatsapp" db:"whatsapp"`
	DateOfBirth        time.Time   `json:"date_of_birth" db:"date_of_birth"`
	Gender             Gender      `json:"gender" db:"gender"`
	NRCNumber          string      `json:"nrc_number" db:"nrc_number"`
	Address            string      `json:"address" db:"address"`
	City               string      `json:"city" db:"city"`
	Province           string      `json:"province" db:"province"`
	Branch             core.Branch `json:"branch" db:"branch"`
	Course             string      `json:"course" db:"course"`
	PreferredLanguage  string      `json:"preferred_language" db:"preferred_language"`
	PreferredSchedule  string      `json:"preferred_schedule" db:"preferred_schedule"`
	EducationLevel     string      `json:"education_level" db:"education_level"`
	PreviousExperience string      `json:"previous_experience" db:"previous_experience"`
	MedicalConditions  string      `json:"medical_conditions" db:"medical_conditions"`
	EmergencyName      string      `json:"emergency_name" db:"emergency_name"`
	EmergencyPhone     string      `json:"emergency_phone" db:"emergency_phone"`
	EmergencyRelation  string      `json:"emergency_relation" db:"emergency_relation"`
	ProfilePhoto       string      `json:"profile_photo" db:"profile_photo"`
	AdminNotes         string      `json:"admin_notes" db:"admin_notes"`
	ReviewedBy         *int        `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt         *time.Time  `json:"reviewed_at" db:"reviewed_at"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

func (a Application) FullName() string { return a.FirstName + " " + a.LastName }

// WhatsAppNumber is the number to reach the applicant on WhatsApp: the dedicated one, else the phone.
func (a Application) WhatsAppNumber() string {
	if a.WhatsApp != "" {
		return a.WhatsApp
	}
	return a.Phone
}

// CourseName returns the display name of the course, or its code when unknown.
func (a Application) CourseName() string { return CourseName(a.Course) }

// appendNote adds a timestamped line to the admin notes. Empty notes are ignored.
func (a *Application) appendNote(author, notes string, at time.Time) {
	notes = core.CleanString(notes)
	if notes == "" {
		return
	}
	line := fmt.Sprintf("[%s] %s: %s", at.UTC().Format("2006-01-02 15:04 UTC"), author, notes)
	if a.AdminNotes != "" {
		a.AdminNotes += "\n"
	}
	a.AdminNotes += line
}

// NewApplication contains the information submitted by an applicant.
type NewApplication struct {
	FirstName          string `json:"first_name" form:"first_name" validate:"required,max=50"`
	LastName           string `json:"last_name" form:"last_name" validate:"required,max=50"`
	Email              string `json:"email" form:"email" validate:"required,email,max=150"`
	Phone              string `json:"phone" form:"phone" validate:"required,phone"`
	WhatsApp           string `json:"whatsapp" form:"whatsapp" validate:"omitempty,phone"`
	DateOfBirth        string `json:"date_of_birth" form:"date_of_birth" validate:"required,date,pastdate"`
	Gender             string `json:"gender" form:"gender" validate:"required,gender"`
	NRCNumber          string `json:"nrc_number" form:"nrc_number" validate:"max=30"`
	Address            string `json:"address" form:"address" validate:"required,max=255"`
	City               string `json:"city" form:"city" validate:"required,max=50"`
	Province           string `json:"province" form:"province" validate:"required,max=50"`
	Branch             string `json:"branch" form:"branch" validate:"required,branch"`
	Course             string `json:"course" form:"course" validate:"required,coursecode"`
	PreferredLanguage  string `json:"preferred_language" form:"preferred_language" validate:"max=30"`
	PreferredSchedule  string `json:"preferred_schedule" form:"preferred_schedule" validate:"max=30"`
	EducationLevel     string `json:"education_level" form:"education_level" validate:"max=50"`
	PreviousExperience string `json:"previous_experience" form:"previous_experience" validate:"max=1000"`
	MedicalConditions  string `json:"medical_conditions" form:"medical_conditions" validate:"max=1000"`
	EmergencyName      string `json:"emergency_name" form:"emergency_name" validate:"required,max=100"`
	EmergencyPhone     string `json:"emergency_phone" form:"emergency_phone" validate:"required,phone"`
	EmergencyRelation  string `json:"emergency_relation" form:"emergency_relation" validate:"max=50"`
}

func (na *NewApplication) clean() {
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.WhatsApp = core.CleanString(na.WhatsApp)
	na.DateOfBirth = core.CleanString(na.DateOfBirth)
	na.Gender = core.CleanString(na.Gender, true /* lower */)
	na.NRCNumber = core.CleanString(na.NRCNumber)
	na.Address = core.CleanString(na.Address)
	na.City = core.CleanString(na.City)
	na.Province = core.CleanString(na.Province)
	na.Branch = core.CleanString(na.Branch)
	if b, err := core.ParseBranch(na.Branch); err == nil && b.IsLocation() {
		na.Branch = string(b)
	}
	na.Course = core.CleanString(na.Course)
	if code, ok := courseCode(na.Course); ok {
		na.Course = code
	}
	na.PreferredLanguage = core.CleanString(na.PreferredLanguage)
	na.PreferredSchedule = core.CleanString(na.PreferredSchedule)
	na.EducationLevel = core.CleanString(na.EducationLevel)
	na.PreviousExperience = core.CleanString(na.PreviousExperience)
	na.MedicalConditions = core.CleanString(na.MedicalConditions)
	na.EmergencyName = core.CleanString(na.EmergencyName)
	na.EmergencyPhone = core.CleanString(na.EmergencyPhone)
	na.EmergencyRelation = core.CleanString(na.EmergencyRelation)
}

// Validate trims every field then reports all the invalid ones at once.
func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.clean()
	return validate.Struct(na)
}

func (na NewApplication) toApplication() Application {
	dob, _ := core.ParseDate(na.DateOfBirth) // validated
	return Application{
		Status:             StatusPending,
		FirstName:          na.FirstName,
		LastName:           na.LastName,
		Email:              na.Email,
		Phone:              na.Phone,
		WhatsApp:           na.WhatsApp,
		DateOfBirth:        dob,
		Gender:             Gender(na.Gender),
		NRCNumber:          na.NRCNumber,
		Address:            na.Address,
		City:               na.City,
		Province:           na.Province,
		Branch:             core.Branch(na.Branch),
		Course:             na.Course,
		PreferredLanguage:  na.PreferredLanguage,
		PreferredSchedule:  na.PreferredSchedule,
		EducationLevel:     na.EducationLevel,
		PreviousExperience: na.PreviousExperience,
		MedicalConditions:  na.MedicalConditions,
		EmergencyName:      na.EmergencyName,
		EmergencyPhone:     na.EmergencyPhone,
		EmergencyRelation:  na.EmergencyRelation,
	}
}

type QueryFilter struct {
	Status   string `query:"status"`
	Branch   string `query:"branch"`
	Course   string `query:"course"`
	DateFrom string `query:"date_from"`
	DateTo   string `query:"date_to"`
	Search   string `query:"search"`

	dateFrom, dateTo time.Time
}

// Clean normalizes the filter and rejects values outside the closed enums.
func (qf *QueryFilter) Clean() error {
	qf.Search = core.CleanString(qf.Search)
	qf.Course = core.CleanString(qf.Course)
	if code, ok := courseCode(qf.Course); ok {
		qf.Course = code
	}
	if qf.Status = core.CleanString(qf.Status); qf.Status != "" {
		st, err := ParseStatus(qf.Status)
		if err != nil {
			return err
		}
		qf.Status = string(st)
	}
	if qf.Branch = core.CleanString(qf.Branch); qf.Branch != "" {
		b, err := core.ParseBranch(qf.Branch)
		if err != nil {
			return err
		}
		qf.Branch = string(b)
	}
	var err error
	if qf.DateFrom = core.CleanString(qf.DateFrom); qf.DateFrom != "" {
		if qf.dateFrom, err = core.ParseDate(qf.DateFrom); err != nil {
			return core.NewFieldError("date_from", "enter a valid date (YYYY-MM-DD)")
		}
	}
	if qf.DateTo = core.CleanString(qf.DateTo); qf.DateTo != "" {
		if qf.dateTo, err = core.ParseDate(qf.DateTo); err != nil {
			return core.NewFieldError("date_to", "enter a valid date (YYYY-MM-DD)")
		}
	}
	return nil
}

// From returns the parsed lower date bound (zero when unset).
func (qf QueryFilter) From() time.Time { return qf.dateFrom }

// To returns the parsed upper date bound, inclusive (zero when unset).
func (qf QueryFilter) To() time.Time { return qf.dateTo }

// Stats counts the applications per status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Reviewing int `json:"reviewing"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
}

func newStats(counts map[Status]int) Stats {
	s := Stats{
		Pending:   counts[StatusPending],
		Reviewing: counts[StatusReviewing],
		Accepted:  counts[StatusAccepted],
		Rejected:  counts[StatusRejected],
		Cancelled: counts[StatusCancelled],
	}
	s.Total = s.Pending + s.Reviewing + s.Accepted + s.Rejected + s.Cancelled
	return s
}

// StatusView is what an applicant sees of their own application.
type StatusView struct {
	ApplicationNumber string      `json:"application_number"`
	FirstName         string      `json:"first_name"`
	Status            Status      `json:"status"`
	StatusLabel       string      `json:"status_label"`
	Branch            core.Branch `json:"branch"`
	Course            string      `json:"course"`
	Notes             string      `json:"notes"`
	SubmittedAt       time.Time   `json:"submitted_at"`
	ReviewedAt        *time.Time  `json:"reviewed_at"`
}

func newStatusView(a Application) StatusView {
	return StatusView{
		ApplicationNumber: a.ApplicationNumber,
		FirstName:         a.FirstName,
		Status:            a.Status,
		StatusLabel:       a.Status.Label(),
		Branch:            a.Branch,
		Course:            a.CourseName(),
		Notes:             a.AdminNotes,
		SubmittedAt:       a.CreatedAt,
		ReviewedAt:        a.ReviewedAt,
	}
}
