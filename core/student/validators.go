package student

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
)

var (
	paymentMethodTag  = "paymentmethod"
	paymentMethodText = "must be one of cash, mobile_money, bank_transfer, card or check"

	studentStatusTag  = "studentstatus"
	studentStatusText = "must be one of active, completed, suspended or withdrawn"

	lessonTypeTag  = "lessontype"
	lessonTypeText = "must be one of theory, practical or assessment"
)

// InitValidators registers the student validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentMethodTag, func(fl validator.FieldLevel) bool {
		return PaymentMethod(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)

	_ = validate.RegisterValidation(studentStatusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, studentStatusTag, studentStatusText)

	_ = validate.RegisterValidation(lessonTypeTag, func(fl validator.FieldLevel) bool {
		return LessonType(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, lessonTypeTag, lessonTypeText)
}
