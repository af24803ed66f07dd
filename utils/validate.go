package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(ClockLayout, fl.Field().String())
		return err == nil
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError carries a message safe to show to API clients.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds a ValidationError for checks that struct tags cannot express.
func Invalid(format string, args ...any) error {
	return invalid(format, args...)
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate runs struct tag validation and returns a user facing error naming
// the first failing field.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return invalid("%s is required", fe.Field())
		case "date":
			return invalid("%s must be a date in YYYY-MM-DD format", fe.Field())
		case "clock":
			return invalid("%s must be a time in HH:MM format", fe.Field())
		case "email":
			return invalid("%s must be a valid email address", fe.Field())
		case "min", "gte", "gt":
			return invalid("%s must be at least %s", fe.Field(), fe.Param())
		case "max", "lte":
			return invalid("%s must be at most %s", fe.Field(), fe.Param())
		default:
			return invalid("%s is invalid", fe.Field())
		}
	}
	return err
}
