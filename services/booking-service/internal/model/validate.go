package model

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,32}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("client_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidationError describes the first invalid field of an input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// validateStruct runs the struct tags and reports the first failing field,
// in declaration order.
func validateStruct(s any, reasons map[string]string) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	reason, ok := reasons[fe.Field()]
	if !ok {
		reason = "failed " + fe.Tag() + " check"
	}
	return &ValidationError{Field: jsonName(fe.Field()), Reason: reason}
}

var fieldNames = map[string]string{
	"ProviderID":  "provider_id",
	"ClientName":  "client_name",
	"ClientEmail": "client_email",
	"Username":    "username",
	"Email":       "email",
	"Password":    "password",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return field
}
