// Package apierror defines the error taxonomy reported by the request engine.
//
// Every failure surfaced to a caller is an *Error carrying a Category, an
// optional Stage for timeouts, and a human readable message. The JSON form of
// an Error is what the presentation layer renders.
package apierror

import (
	"errors"
	"fmt"
)

// Category classifies an engine failure.
type Category string

const (
	CategoryInvalidURL        Category = "invalidUrl"
	CategoryInvalidHeader     Category = "invalidHeader"
	CategoryInvalidBody       Category = "invalidBody"
	CategoryTimeout           Category = "timeout"
	CategoryTransport         Category = "transport"
	CategoryDecompression     Category = "decompression"
	CategoryCookiePersistence Category = "cookiePersistence"
)

// Stage names the I/O stage whose budget elapsed.
type Stage string

const (
	StageConnect Stage = "connect"
	StageWrite   Stage = "write"
	StageRead    Stage = "read"
)

// Error is a categorized engine error.
type Error struct {
	Category Category `json:"category" yaml:"category"`
	Stage    Stage    `json:"stage,omitempty" yaml:"stage,omitempty"`
	Message  string   `json:"message" yaml:"message"`
	Err      error    `json:"-" yaml:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s (%s): %s", e.Category, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err under the given category. The message is taken from err.
func New(category Category, err error) *Error {
	return &Error{Category: category, Message: err.Error(), Err: err}
}

// Newf creates an error with a formatted message and no cause.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{Category: category, Message: fmt.Sprintf(format, args...)}
}

// Timeout wraps err as a timeout of the given stage. An empty stage means the
// elapsed budget could not be attributed.
func Timeout(stage Stage, err error) *Error {
	return &Error{Category: CategoryTimeout, Stage: stage, Message: err.Error(), Err: err}
}

// CategoryOf returns the category of err, or the empty category when err is
// not an *Error.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// Is reports whether err is an *Error of the given category.
func Is(err error, category Category) bool {
	return CategoryOf(err) == category
}
