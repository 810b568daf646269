package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/biter777/countries"
	"github.com/go-playground/validator/v10"
)

var (
	once      sync.Once
	validate  *validator.Validate
	callCodes map[string]struct{}
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		callCodes = make(map[string]struct{})
		for _, c := range countries.All() {
			for _, cc := range c.CallCodes() {
				callCodes[strconv.Itoa(int(cc))] = struct{}{}
			}
		}
		_ = validate.RegisterValidation("callcode", func(fl validator.FieldLevel) bool {
			return IsCallCode(fl.Field().String())
		})
	})
	return validate
}

// IsCallCode accepts an international dialing prefix like "+91" or "44",
// or a country given by its ISO code or name.
func IsCallCode(value string) bool {
	instance()
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	digits := strings.TrimPrefix(value, "+")
	if _, err := strconv.Atoi(digits); err == nil {
		_, ok := callCodes[digits]
		return ok
	}
	return countries.ByName(value) != countries.Unknown
}

// Struct validates a single struct object
func Struct(s interface{}) error {
	if s == nil {
		return fmt.Errorf("is nil")
	}
	if !isStruct(s) {
		return fmt.Errorf("not a struct")
	}
	var validationErrors validator.ValidationErrors
	var invalidValidationError *validator.InvalidValidationError

	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	if errors.As(err, &validationErrors) {
		message := ""
		for _, fieldErr := range validationErrors {
			if len(message) > 0 {
				message += "; "
			}
			message += fmt.Sprintf("%s %s", fieldErr.Field(), fieldErr.Tag())
		}
		return errors.New(message)
	} else if errors.As(err, &invalidValidationError) {
		return fmt.Errorf("invalid validation error: %w", err)
	} else {
		return fmt.Errorf("unknown validation error: %w", err)
	}
}

func isStruct(s interface{}) bool {
	r := reflect.TypeOf(s)
	if r.Kind() == reflect.Ptr {
		r = r.Elem()
	}
	return r.Kind() == reflect.Struct
}
