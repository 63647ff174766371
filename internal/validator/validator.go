package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns the validator the handlers and tests share, with the
// project's custom tags registered.
func New() *validator.Validate {
	v := validator.New()

	// "notblank" rejects whitespace-only strings. The required tag alone
	// accepts "   ", which matters for pasted coupon codes.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // not a string, leave it to other validators
		}
		return strings.TrimSpace(str) != ""
	})

	return v
}
