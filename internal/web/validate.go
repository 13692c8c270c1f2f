package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"tradingmodels/internal/apperr"
)

var validate = validator.New()

// ValidationError describes one rejected request field
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// requestError is an invalid_config failure carrying field details
type requestError struct {
	err     *apperr.Error
	Details []ValidationError
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

// readAndValidate binds the request, applies default tags and validates it
func readAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return invalidRequest(err)
	}
	if err := defaults.Set(req); err != nil {
		return invalidRequest(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return invalidRequest(err)
	}
	return nil
}

func invalidRequest(err error) error {
	var details []ValidationError

	var verrs validator.ValidationErrors
	var he *echo.HTTPError
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			details = append(details, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
	case errors.As(err, &he):
		details = []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
	default:
		details = []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}

	messages := make([]string, len(details))
	for i, d := range details {
		messages[i] = d.Message
	}
	return &requestError{
		err:     apperr.New(apperr.KindInvalidConfig, "invalid request: %s", strings.Join(messages, "; ")),
		Details: details,
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
