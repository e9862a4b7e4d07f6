package directory

import (
	"errors"
	"fmt"
)

// sentinel errors of the directory
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidStatus   = errors.New("invalid status")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidInput}, args...)...)
}
