package response

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Response is the envelope shared by every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

const validationFailed = "Validation failed"

func OK(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

func Error(msg string) Response {
	return Response{
		Error: msg,
	}
}

// ValidationError lists one human-readable message per failed field rule.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is required", err.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s characters long", err.Field(), err.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s characters long", err.Field(), err.Param()))
		case "maxbytes":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s bytes long", err.Field(), err.Param()))
		case "phone":
			msgs = append(msgs, fmt.Sprintf("field %s is not a valid phone number", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Error: validationFailed,
		Data:  msgs,
	}
}
