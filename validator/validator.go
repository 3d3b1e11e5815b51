package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"greengate/pkg/apperr"
	"greengate/pkg/said"
)

// Validator wraps the go-playground validator.
type Validator struct {
	validator *validator.Validate
}

// New creates a new validator instance.
func New() *Validator {
	v := validator.New()

	// Register custom tag name function to use json tags for field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("phone_number", validatePhoneNumber)
	v.RegisterValidation("said", validateSAID)

	return &Validator{
		validator: v,
	}
}

// ValidateStruct validates a struct and returns a typed validation error.
func (v *Validator) ValidateStruct(s interface{}) error {
	if s == nil {
		return apperr.Validation("INVALID_INPUT", "input cannot be nil")
	}

	if err := v.validator.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var messages []string
			for _, validationErr := range validationErrors {
				messages = append(messages, v.formatFieldError(validationErr))
			}
			return apperr.Validation("INVALID_INPUT", strings.Join(messages, "; "))
		}
		return apperr.Validation("INVALID_INPUT", err.Error())
	}
	return nil
}

// formatFieldError formats a single field validation error.
func (v *Validator) formatFieldError(err validator.FieldError) string {
	field := err.Field()
	tag := err.Tag()
	param := err.Param()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", field, param)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "phone_number":
		return fmt.Sprintf("%s must be a valid phone number (format: +27821234567)", field)
	case "said":
		return fmt.Sprintf("%s must be a valid 13-digit ID number", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validatePhoneNumber validates phone number format.
// Accepts international format starting with + followed by country code
// and number, e.g. +27821234567.
func validatePhoneNumber(fl validator.FieldLevel) bool {
	phoneNumber := fl.Field().String()

	// Phone number must start with + and have 7-15 digits total
	phoneRegex := regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

	return phoneRegex.MatchString(phoneNumber)
}

// validateSAID validates a national ID number: 13 digits with a valid
// checksum and embedded birth date.
func validateSAID(fl validator.FieldLevel) bool {
	_, err := said.Parse(fl.Field().String())
	return err == nil
}
