package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateKey = errors.New("duplicate category key")
	ErrUnmatched    = errors.New("completeness error: unmatched input")
	ErrIncomplete   = errors.New("completeness error: incomplete uncertainty input")
	ErrFuelBasis    = errors.New("inconsistent fuel sold / fuel used input")
)

// KeyError is a fatal input error naming the offending categories.
type KeyError struct {
	Err  error
	What string
	Keys []Key
}

func (e *KeyError) Error() string {
	switch len(e.Keys) {
	case 0:
		return fmt.Sprintf("%v: %s", e.Err, e.What)
	case 1:
		return fmt.Sprintf("%v: %s: %s", e.Err, e.What, e.Keys[0])
	}
	return fmt.Sprintf("%v: %s: %s and %d more", e.Err, e.What, e.Keys[0], len(e.Keys)-1)
}

func (e *KeyError) Unwrap() error { return e.Err }
