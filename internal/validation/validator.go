package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"socialregistration/internal/auth/credentials"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,30}$`)

// Validator wraps the go-playground validator with the rules used by the
// account forms.
type Validator struct {
	validator *validator.Validate
}

func New() *Validator {
	validate := validator.New()

	must(validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}))

	// bcrypt limits its input in bytes, not characters
	must(validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		n := len(fl.Field().String())
		return n >= credentials.MinPasswordLength && n <= credentials.MaxPasswordLength
	}))

	// report errors under the form field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: validate}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate validates a struct. Rule violations come back as *Errors.
func (v *Validator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return newErrors(verrs)
}

// Errors maps form fields to user-facing messages.
type Errors struct {
	Fields map[string]string
}

func (e *Errors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

// FieldError builds an Errors value for a single field.
func FieldError(field, message string) *Errors {
	return &Errors{Fields: map[string]string{field: message}}
}

func newErrors(errs validator.ValidationErrors) *Errors {
	out := make(map[string]string, len(errs))

	for _, err := range errs {
		field := err.Field()

		switch err.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s characters long", field, err.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
		case "password":
			out[field] = fmt.Sprintf("password must be %d to %d bytes long", credentials.MinPasswordLength, credentials.MaxPasswordLength)
		case "username":
			out[field] = "username must be 3 to 30 letters, numbers, dots, hyphens or underscores"
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return &Errors{Fields: out}
}
