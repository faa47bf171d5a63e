package mocker

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrParentNotFound is returned when a parents prefix matches no stored instance.
	ErrParentNotFound = errors.New("parent not found")

	// ErrInvalidTitle is returned when an event title is not a dotted table id.
	ErrInvalidTitle = errors.New("invalid event title")

	// ErrDuplicateKey is returned when an instance key is stored twice.
	ErrDuplicateKey = errors.New("duplicate instance key")
)

// BuildError represents a fatal error detected while building a test case.
//
// Build errors include:
//   - Configuration: missing settings, base_date, documentation or unittests
//   - Grammar: unparseable interval alias or base date
//   - Reference: parents prefix not found in the instance store
//   - Shape: event title not in a.b.c form, malformed parents
//
// The wrapped cause stays reachable through errors.Is and errors.As.
type BuildError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Title is the event title, when the error belongs to one event.
	Title string

	// Key is the field or instance key involved, if any.
	Key string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes build errors.
type ErrorCode string

const (
	// ErrCodeConfig indicates a malformed test case declaration.
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeGrammar indicates an invalid interval alias or base date.
	ErrCodeGrammar ErrorCode = "GRAMMAR"

	// ErrCodeReference indicates an unresolvable parents prefix.
	ErrCodeReference ErrorCode = "REFERENCE"

	// ErrCodeShape indicates a malformed title or parents field.
	ErrCodeShape ErrorCode = "SHAPE"

	// ErrCodeRegistry indicates the template registry cannot serve a match.
	ErrCodeRegistry ErrorCode = "REGISTRY"

	// ErrCodeTemplate indicates a template factory failed.
	ErrCodeTemplate ErrorCode = "TEMPLATE"

	// ErrCodeStore indicates an instance store invariant was violated.
	ErrCodeStore ErrorCode = "STORE"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Title != "" && e.Key != "" {
		msg = fmt.Sprintf("%s (event=%s, key=%s)", msg, e.Title, e.Key)
	} else if e.Title != "" {
		msg = fmt.Sprintf("%s (event=%s)", msg, e.Title)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *BuildError) Unwrap() error {
	return e.Err
}

func buildError(code ErrorCode, title, key string, err error, format string, args ...any) *BuildError {
	return &BuildError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Title:   title,
		Key:     key,
		Err:     err,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsConfigError returns true if the error is a configuration error.
func IsConfigError(err error) bool { return hasCode(err, ErrCodeConfig) }

// IsGrammarError returns true if the error is an interval or base date grammar error.
func IsGrammarError(err error) bool { return hasCode(err, ErrCodeGrammar) }

// IsReferenceError returns true if the error is an unresolved parent reference.
func IsReferenceError(err error) bool { return hasCode(err, ErrCodeReference) }

// IsShapeError returns true if the error is a malformed title or parents field.
func IsShapeError(err error) bool { return hasCode(err, ErrCodeShape) }
