package admin

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	clienterrors "github.com/jrsteele09/club-booking-client/internal/errors"
)

var timeSlotPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d-([01]\d|2[0-3]):[0-5]\d$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// "HH:MM-HH:MM"
	_ = v.RegisterValidation("timeslot", func(fl validator.FieldLevel) bool {
		return timeSlotPattern.MatchString(fl.Field().String())
	})
	return v
}

// validateInput turns the first failing field into a ValidationError
func validateInput(v *validator.Validate, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return &clienterrors.ValidationError{Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &clienterrors.ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "timeslot":
		return "must look like HH:MM-HH:MM"
	case "datetime":
		return "must be a date like " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}

func requireValue(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &clienterrors.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
