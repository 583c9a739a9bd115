package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerOnce     sync.Once
	enrollmentRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/_.-]{1,49}$`)
)

// RegisterValidators installs the custom rules on gin's validator and makes
// field errors report JSON names
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		v.RegisterValidation("isbn", validateISBN)
		v.RegisterValidation("enrollment", validateEnrollment)
	})
}

// ValidISBN accepts ISBN-10 (last digit may be X) and ISBN-13, ignoring
// hyphens and spaces. Check digits are not verified.
func ValidISBN(isbn string) bool {
	digits := strings.NewReplacer("-", "", " ", "").Replace(isbn)
	switch len(digits) {
	case 10:
		for i, r := range digits {
			if r >= '0' && r <= '9' {
				continue
			}
			if i == 9 && (r == 'X' || r == 'x') {
				continue
			}
			return false
		}
		return true
	case 13:
		for _, r := range digits {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}

func validateISBN(fl validator.FieldLevel) bool {
	return ValidISBN(fl.Field().String())
}

func validateEnrollment(fl validator.FieldLevel) bool {
	return enrollmentRegexp.MatchString(fl.Field().String())
}

// FieldErrors maps each failing field to a readable message. ok is false
// when err is not a validation failure.
func FieldErrors(err error) (map[string]string, bool) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, false
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fieldMessage(fe.Field(), fe.Tag(), fe.Param())
	}
	return out, true
}

func fieldMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "isbn":
		return fmt.Sprintf("%s must be a valid ISBN-10 or ISBN-13", field)
	case "enrollment":
		return fmt.Sprintf("%s must be 2-50 letters, digits or /_.-", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
