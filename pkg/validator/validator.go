package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		if err.Param != "" {
			parts[i] = err.Field + " failed on " + err.Tag + "=" + err.Param
		} else {
			parts[i] = err.Field + " failed on " + err.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// FieldMessages renders the failures as a field -> human message map suitable
// for attaching to form responses.
func (v ValidationErrors) FieldMessages() map[string]string {
	messages := make(map[string]string, len(v))
	for _, failure := range v {
		if _, exists := messages[failure.Field]; exists {
			continue // first failure per field wins
		}
		messages[failure.Field] = messageFor(failure)
	}
	return messages
}

func messageFor(failure ValidationError) string {
	field := prettifyField(failure.Field)
	switch failure.Tag {
	case "required":
		return fmt.Sprintf("The %s field must be defined", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address", field)
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters", field, failure.Param)
	case "max":
		return fmt.Sprintf("The %s field must be at most %s characters", field, failure.Param)
	case "eqfield":
		return fmt.Sprintf("The %s field must match the %s field", field, prettifyField(failure.Param))
	case "password":
		return fmt.Sprintf("The %s field must contain an uppercase letter, a lowercase letter, a digit, and a special character", field)
	default:
		if failure.Param != "" {
			return fmt.Sprintf("The %s field failed validation: %s=%s", field, failure.Tag, failure.Param)
		}
		return fmt.Sprintf("The %s field failed validation: %s", field, failure.Tag)
	}
}

func prettifyField(name string) string {
	if name == "" {
		return "field"
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				return fld.Name
			}

			comma := strings.Index(name, ",")
			if comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// password enforces the complexity policy for new credentials:
		// uppercase, lowercase, digit, and a non-alphanumeric character.
		_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return PasswordMeetsPolicy(fl.Field().String())
		})
	})
	return validate
}

// PasswordMeetsPolicy reports whether the candidate satisfies the character
// class requirements. Length is enforced separately via the min tag.
func PasswordMeetsPolicy(candidate string) bool {
	var upper, lower, digit, special bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}
