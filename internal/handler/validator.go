package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/farm-records/internal/service"
)

// RequestValidator plugs validator/v10 into echo.  Register it with
// e.Validator so handlers can call c.Validate on their request bodies.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate returns a *service.ValidationError for the first failing field.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	fe := ves[0]
	msg := "is invalid"
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "email":
		msg = "must be a valid email"
	case "min":
		msg = "must be at least " + fe.Param() + " characters"
	case "max":
		msg = "must be at most " + fe.Param() + " characters"
	}
	return &service.ValidationError{Field: fe.Field(), Msg: msg}
}
