package parser

import (
	"errors"
	"fmt"
)

// Parse failure kinds. All are terminal for the file: nothing is persisted.
var (
	// ErrMalformedDocument indicates the input is not a valid L5X/L5K document.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrUnsupportedSchemaVersion indicates a well-formed export of a schema
	// revision this parser does not understand.
	ErrUnsupportedSchemaVersion = errors.New("unsupported schema version")

	// ErrTruncatedInput indicates the document ended before it was complete.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrDocumentTooLarge indicates the input exceeded the configured size envelope.
	ErrDocumentTooLarge = errors.New("document too large")
)

// ParseError carries the failure kind plus location details.
type ParseError struct {
	Kind error  // one of the sentinel errors above
	Line int    // 1-based line, 0 when unknown
	Msg  string // human readable detail
	Err  error  // underlying cause, if any
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel kind so callers can use errors.Is.
func (e *ParseError) Is(target error) bool {
	return e.Kind == target
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// KindName returns a stable identifier for the failure kind.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrMalformedDocument):
		return "MalformedDocument"
	case errors.Is(err, ErrUnsupportedSchemaVersion):
		return "UnsupportedSchemaVersion"
	case errors.Is(err, ErrTruncatedInput):
		return "TruncatedInput"
	case errors.Is(err, ErrDocumentTooLarge):
		return "DocumentTooLarge"
	default:
		return "InternalError"
	}
}

// IsParseFailure reports whether err is a document problem rather than an
// internal fault.
func IsParseFailure(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func malformed(line int, format string, args ...any) *ParseError {
	return &ParseError{Kind: ErrMalformedDocument, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func truncated(line int, format string, args ...any) *ParseError {
	return &ParseError{Kind: ErrTruncatedInput, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func unsupported(format string, args ...any) *ParseError {
	return &ParseError{Kind: ErrUnsupportedSchemaVersion, Msg: fmt.Sprintf(format, args...)}
}
