package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// kePhonePattern accepts a Kenyan mobile number as 07XXXXXXXX, 2547XXXXXXXX
// or +2547XXXXXXXX.
var kePhonePattern = regexp.MustCompile(`^(?:254|\+254|0)?7\d{8}$`)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("kephone", func(fl validator.FieldLevel) bool {
		return kePhonePattern.MatchString(fl.Field().String())
	})
}

// Validate struct fields
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["_"] = err.Error()
		return errors
	}
	for _, err := range verrs {
		errors[err.Field()] = err.Tag()
	}
	return errors
}
