package application

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
)

// Course codes offered by the school
const (
	CourseClassA    = "CLASS-A"
	CourseClassB    = "CLASS-B"
	CourseClassC    = "CLASS-C"
	CourseClassD    = "CLASS-D"
	CourseRefresher = "REFRESHER"
	CourseDefensive = "DEFENSIVE"
)

var (
	Courses = []string{CourseClassA, CourseClassB, CourseClassC, CourseClassD, CourseRefresher, CourseDefensive}

	courseNames = map[string]string{
		CourseClassA:    "Class A (Motorcycle)",
		CourseClassB:    "Class B (Light Vehicle)",
		CourseClassC:    "Class C (Heavy Vehicle)",
		CourseClassD:    "Class D (Passenger Vehicle)",
		CourseRefresher: "Refresher Course",
		CourseDefensive: "Defensive Driving",
	}

	// custom validation tags & texts
	courseCodeTag  = "coursecode"
	courseCodeText = "must be one of " + strings.Join(Courses, ", ")

	genderTag  = "gender"
	genderText = "must be one of male, female or other"
)

// courseCode returns the canonical code of a course, matched case-insensitively.
func courseCode(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	_, ok := courseNames[s]
	return s, ok
}

// CourseName returns the display name of a course code, or the code itself when unknown.
func CourseName(code string) string {
	if name, ok := courseNames[code]; ok {
		return name
	}
	return code
}

// InitValidators registers the application validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseCodeTag, func(fl validator.FieldLevel) bool {
		_, ok := courseNames[fl.Field().String()]
		return ok
	})
	core.RegisterCustomTranslation(validate, translator, courseCodeTag, courseCodeText)

	_ = validate.RegisterValidation(genderTag, func(fl validator.FieldLevel) bool {
		return Gender(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, genderTag, genderText)
}
