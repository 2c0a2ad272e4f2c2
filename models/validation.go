package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"bijouterie-backoffice/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	RegisterValidation(v)
	return v
}

// RegisterValidation reports fields by their JSON name and lets numeric
// rules such as gt=0 apply to Amount.
func RegisterValidation(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonName)
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if a, ok := field.Interface().(Amount); ok {
			return a.InexactFloat64()
		}
		return nil
	}, Amount{})
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// check runs the validate tags of doc.
func check(doc any) error {
	if err := validate.Struct(doc); err != nil {
		return FieldError(err)
	}
	return nil
}

// FieldError names the offending fields of a validation failure. Any other
// error means the body could not be decoded at all.
func FieldError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		names := make([]string, 0, len(fields))
		seen := make(map[string]bool, len(fields))
		for _, f := range fields {
			if name := f.Field(); !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		return apperr.Validation("Invalid or missing fields: %s", strings.Join(names, ", "))
	}
	return apperr.Validation("Invalid request body")
}
