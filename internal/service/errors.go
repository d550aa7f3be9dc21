package service

import (
	"errors"
	"fmt"
)

// ErrJournalDisabled is returned by journal queries when no journal is configured.
var ErrJournalDisabled = errors.New("event journal is disabled")

// ValidationError is returned when request data fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
	}
	return e.Message
}
