package chat

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ParticipantPayload is the client body for registration.
type ParticipantPayload struct {
	Name string `json:"name" validate:"required"`
}

// MessagePayload is the client body for posting a message. The status type
// is deliberately absent from the accepted set: status notices are
// system-generated only.
type MessagePayload struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
	Type string `json:"type" validate:"required,oneof=message private_message"`
}

// ValidationError carries every field error found in a payload. Validation
// never short-circuits; callers get the full list in one pass.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + strings.Join(e.Errors, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report errors under the wire field names, not the Go ones.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateParticipant normalizes and checks a registration payload. It
// returns the trimmed payload, or a ValidationError listing every problem.
func ValidateParticipant(p ParticipantPayload) (ParticipantPayload, *ValidationError) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validate.Struct(p); err != nil {
		return p, &ValidationError{Errors: fieldMessages(err)}
	}
	return p, nil
}

// ValidateMessage normalizes and checks a message payload. It returns the
// trimmed payload, or a ValidationError listing every problem.
func ValidateMessage(p MessagePayload) (MessagePayload, *ValidationError) {
	p.To = strings.TrimSpace(p.To)
	p.Text = strings.TrimSpace(p.Text)
	if err := validate.Struct(p); err != nil {
		return p, &ValidationError{Errors: fieldMessages(err)}
	}
	return p, nil
}

// fieldMessages converts validator errors into the human-readable strings
// returned to clients.
func fieldMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%q is required and must not be empty", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%q must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%q is invalid", fe.Field()))
		}
	}
	return msgs
}
