package recurrence

import (
	"errors"
	"fmt"
)

// ErrorType classifies recurrence errors
type ErrorType string

const (
	// ErrTypeConfiguration marks a rule that cannot be evaluated as written.
	ErrTypeConfiguration ErrorType = "configuration"
	// ErrTypeEvaluationLimit marks a rule that kept advancing without producing
	// any occurrence.
	ErrTypeEvaluationLimit ErrorType = "evaluation_limit"
	// ErrTypeInvalidInput marks malformed input outside the rule itself.
	ErrTypeInvalidInput ErrorType = "invalid_input"
)

var (
	// ErrConfiguration matches every configuration error via errors.Is
	ErrConfiguration = errors.New("invalid recurrence rule")
	// ErrEvaluationLimit matches evaluation limit errors via errors.Is
	ErrEvaluationLimit = errors.New("recurrence evaluation limit exceeded")
	// ErrInvalidInput matches invalid input errors via errors.Is
	ErrInvalidInput = errors.New("invalid recurrence input")
)

// Error represents a recurrence-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the sentinel of its type.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Type == ErrTypeConfiguration
	case ErrEvaluationLimit:
		return e.Type == ErrTypeEvaluationLimit
	case ErrInvalidInput:
		return e.Type == ErrTypeInvalidInput
	}
	return false
}

func configErrorf(format string, args ...any) *Error {
	return &Error{Type: ErrTypeConfiguration, Message: fmt.Sprintf(format, args...)}
}

func limitError(limit int) *Error {
	return &Error{
		Type:    ErrTypeEvaluationLimit,
		Message: fmt.Sprintf("no occurrence after %d consecutive increments", limit),
	}
}

func inputError(message string, err error) *Error {
	return &Error{Type: ErrTypeInvalidInput, Message: message, Err: err}
}
