package cli

import (
	"errors"

	"github.com/plc-analyzer/backend/internal/naming"
	"github.com/plc-analyzer/backend/internal/parser"
)

// Exit codes returned by the l5xctl binary.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitPanic        = 3
	ExitInvalidRules = 10
	ExitParseFailure = 11
	ExitViolations   = 12
)

var (
	// ErrUsage marks bad arguments or flags.
	ErrUsage = errors.New("usage error")

	// ErrInvalidRules indicates a rule set file that cannot be read or compiled.
	ErrInvalidRules = errors.New("invalid rule set")

	// ErrViolations is returned by lint when violations reach the failure threshold.
	ErrViolations = errors.New("naming violations found")
)

// ExitCodeForError returns the exit code for an error returned by Execute.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidRules),
		errors.Is(err, naming.ErrInvalidRule),
		errors.Is(err, naming.ErrInvalidPattern),
		errors.Is(err, naming.ErrInvalidScope):
		return ExitInvalidRules
	case parser.IsParseFailure(err):
		return ExitParseFailure
	case errors.Is(err, ErrViolations):
		return ExitViolations
	}
	return ExitGeneralError
}
