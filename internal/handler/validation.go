package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo's Validator
// interface so handlers can call c.Validate on bound DTOs.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds the validator used for every request DTO. Field
// names in error reports come from the json tag, matching the names
// the client actually sent.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i interface{}) error { return cv.v.Struct(i) }

type fieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
	Type  string `json:"type"`
}

// validationError renders the 422 envelope for a failed c.Validate
// call: {"detail": "Validation Error", "errors": [{field, msg, type}]}.
func validationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"detail": "Validation Error"})
	}
	items := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		items = append(items, fieldError{Field: fe.Field(), Msg: msgForTag(fe), Type: fe.Tag()})
	}
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{"detail": "Validation Error", "errors": items})
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return "value is too short"
	case "max":
		return "value is too long"
	case "len":
		return "value has wrong length"
	case "gt", "gte":
		return "value is too small"
	case "lt", "lte":
		return "value is too large"
	default:
		return "value is invalid"
	}
}
