package shell

import (
	"errors"
	"fmt"
)

var (
	ErrMissingArgument  = errors.New("missing argument")
	ErrTooManyArguments = errors.New("too many arguments")
	ErrInvalidOption    = errors.New("invalid option")
)

// CommandError is a built-in command that could not be parsed or validated.
type CommandError struct {
	Verb  string
	Usage string
	Err   error

	// Remedy replaces the usage line as the hint when set.
	Remedy string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Verb, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func (e *CommandError) Hint() string {
	if e.Remedy != "" {
		return e.Remedy
	}
	if e.Usage == "" {
		return "type help for the list of commands"
	}
	return "usage: " + e.Usage
}

// Hinter is implemented by errors that carry a remediation hint.
type Hinter interface {
	Hint() string
}

// HintOf returns the first non-empty hint in err's chain.
func HintOf(err error) string {
	for err != nil {
		if h, ok := err.(Hinter); ok {
			if hint := h.Hint(); hint != "" {
				return hint
			}
		}
		err = errors.Unwrap(err)
	}
	return ""
}
