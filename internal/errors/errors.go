// Package errors provides error handling for tabloom.
//
// It re-exports github.com/cockroachdb/errors and adds two error kinds that the
// CLI and HTTP layers translate into user-facing responses:
//
//   - validation: the request names something the dataset cannot satisfy
//     (missing column, unsupported file format, bad thresholds)
//   - not found: the referenced file does not exist in the store
//
// Any error carrying neither mark is internal.
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New      = crdb.New
	Newf     = crdb.Newf
	Wrap     = crdb.Wrap
	Wrapf    = crdb.Wrapf
	WithHint = crdb.WithHint
	Hints    = crdb.GetAllHints
	Is       = crdb.Is
	As       = crdb.As
	Mark     = crdb.Mark
)

// Kind reference errors. Match with Is.
var (
	ErrValidation = New("validation failed")
	ErrNotFound   = New("not found")
)

// Kind classifies an error for callers that need to pick a response.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Validationf returns a validation-kind error with a formatted message.
func Validationf(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrValidation)
}

// NotFoundf returns a not-found-kind error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool { return err != nil && Is(err, ErrValidation) }

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool { return err != nil && Is(err, ErrNotFound) }

// KindOf returns the kind of err. A nil error has no kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return KindValidation
	case IsNotFound(err):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Recover turns a panic in the calling function into an internal error stored in *errp.
// Use as: defer errors.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	var err error
	switch v := r.(type) {
	case error:
		err = crdb.WithStack(crdb.Wrap(v, "internal error"))
	default:
		err = crdb.WithStack(crdb.Newf("internal error: %s", fmt.Sprint(v)))
	}
	if errp != nil {
		*errp = err
	}
}
