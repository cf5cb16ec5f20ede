package publish

import (
	"errors"
	"fmt"
)

var ErrInFlight = errors.New("publish already in progress")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
