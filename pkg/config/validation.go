package config

import (
	"fmt"
	"reflect"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// Validator is implemented by configuration structs with checks beyond
// `required` tags. Load calls it after the tag checks pass. *errors.Error
// values are returned unchanged; anything else is wrapped with
// CodeValidation.
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if _, isSSErr := sserr.AsError(err); isSSErr {
			return err
		}
		return sserr.Wrap(err, sserr.CodeValidation, "config: custom validation failed")
	}
	return nil
}

// validateRequired walks rv, including structs held in slices, and reports
// the first `required:"true"` field that is still zero. path is the dotted
// location used in the message, e.g. "Consumers[1].ID".
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		switch {
		case isNested(sf.Type):
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Slice && isNested(sf.Type.Elem()):
			for j := 0; j < field.Len(); j++ {
				if err := validateRequired(field.Index(j), fmt.Sprintf("%s[%d]", fieldPath, j)); err != nil {
					return err
				}
			}
			continue
		}

		if sf.Tag.Get("required") == "true" && field.IsZero() {
			return sserr.Newf(sserr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}
	return nil
}
