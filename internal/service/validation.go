package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

var tenDigits = regexp.MustCompile(`^[0-9]{10}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("bloodtype", func(fl validator.FieldLevel) bool {
		return domain.BloodType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("digits10", func(fl validator.FieldLevel) bool {
		return tenDigits.MatchString(fl.Field().String())
	})
	return v
}

// validateInput runs struct tags and reports every failing field at once
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate input: %w", err)
	}
	ve := domain.NewValidationError()
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), fieldMessage(fe))
	}
	return ve
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "bloodtype":
		return "must be one of: A+, A-, B+, B-, AB+, AB-, O+, O-"
	case "digits10":
		return "must be a 10-digit number"
	default:
		return "is invalid"
	}
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
