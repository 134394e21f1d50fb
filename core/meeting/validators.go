package meeting

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/redinnovafp/backend/core"
)

var (
	meetingTypeTag  = "meetingtype"
	meetingTypeText = "type must be one of subred, coordinacion, formacion or proyecto"
)

// InitValidators registers the meeting validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(meetingTypeTag, meetingTypeValidation)
	core.RegisterCustomTranslation(validate, translator, meetingTypeTag, meetingTypeText)
}

func meetingTypeValidation(fl validator.FieldLevel) bool {
	t := Type(fl.Field().String())
	for _, valid := range Types {
		if t == valid {
			return true
		}
	}
	return false
}
