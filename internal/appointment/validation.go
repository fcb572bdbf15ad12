package appointment

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports the first submitted field that broke a constraint.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var fieldMessages = map[string]string{
	"Name":          "Name must be at least 2 characters",
	"Role":          "Role must be one of Student, Parent, Visitor, Staff, Other",
	"Email":         "Invalid email address",
	"Phone":         "Phone number must be at least 10 digits",
	"MeetingReason": "Please provide more details about the meeting reason",
	"PreferredDate": "Please select a preferred date (YYYY-MM-DD)",
}

// Validator checks submissions before they reach the repository.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return Role(fl.Field().String()).Valid()
	})
	return &Validator{validate: v}
}

func (v *Validator) Validate(in NewAppointment) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate appointment: %w", err)
	}

	first := verrs[0]
	msg, ok := fieldMessages[first.Field()]
	if !ok {
		msg = fmt.Sprintf("%s is invalid", first.Field())
	}
	return &ValidationError{Field: first.Field(), Message: msg, Err: err}
}
