package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
)

type (
	LessonType   string
	LessonStatus string
)

const (
	LessonTheory     LessonType = "theory"
	LessonPractical  LessonType = "practical"
	LessonAssessment LessonType = "assessment"

	LessonScheduled LessonStatus = "scheduled"
	LessonCompleted LessonStatus = "completed"
	LessonCancelled LessonStatus = "cancelled"
	LessonNoShow    LessonStatus = "no_show"
)

var (
	LessonTypes    = []LessonType{LessonTheory, LessonPractical, LessonAssessment}
	LessonStatuses = []LessonStatus{LessonScheduled, LessonCompleted, LessonCancelled, LessonNoShow}
)

func (t LessonType) IsValid() bool {
	for _, lt := range LessonTypes {
		if t == lt {
			return true
		}
	}
	return false
}

func (s LessonStatus) IsValid() bool {
	for _, ls := range LessonStatuses {
		if s == ls {
			return true
		}
	}
	return false
}

type Lesson struct {
	ID              int          `json:"id" db:"id"`
	StudentID       int          `json:"student_id" db:"student_id"`
	InstructorID    *int         `json:"instructor_id" db:"instructor_id"`
	Title           string       `json:"title" db:"title"`
	LessonType      LessonType   `json:"lesson_type" db:"lesson_type"`
	ScheduledAt     time.Time    `json:"scheduled_at" db:"scheduled_at"`
	DurationMinutes int          `json:"duration_minutes" db:"duration_minutes"`
	Status          LessonStatus `json:"status" db:"status"`
	Notes           string       `json:"notes" db:"notes"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

type NewLesson struct {
	InstructorID    *int      `json:"instructor_id" validate:"omitempty,gt=0"`
	Title           string    `json:"title" validate:"required,max=100"`
	LessonType      string    `json:"lesson_type" validate:"required,lessontype"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
	Notes           string    `json:"notes" validate:"max=1000"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.LessonType = core.CleanString(nl.LessonType, true /* lower */)
	nl.Notes = core.CleanString(nl.Notes)
	if nl.DurationMinutes == 0 {
		nl.DurationMinutes = 60
	}
	return validate.Struct(nl)
}
