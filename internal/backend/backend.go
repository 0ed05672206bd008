// Package backend defines the three capability sets a storage route is
// made of (locator resolution, lifecycle management, content access) and
// the Result type every capability call reports through.
//
// Backends never return Go errors to the executor: a fault inside a call is
// captured at the call boundary and becomes an "EXCEPTION: ..." diagnostic
// in the Result.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storageverifier/internal/locator"
)

const (
	// ExceptionMarker prefixes every captured fault.
	ExceptionMarker = "EXCEPTION: "

	// maxDescription bounds the fault description carried in a diagnostic.
	maxDescription = 1000
)

// ErrUnsupported is the fault of a capability a backend does not
// implement.
var ErrUnsupported = errors.New("NOT_IMPLEMENTED")

// Result is the outcome of one capability call. Succeeded is false both for
// expected negative outcomes (Message "false") and for captured faults
// (Message carries ExceptionMarker).
type Result[T any] struct {
	Succeeded bool
	Value     T
	Message   string
}

// Ok is a successful outcome.
func Ok[T any](v T) Result[T] {
	return Result[T]{Succeeded: true, Value: v, Message: "true"}
}

// Fail is an expected negative outcome.
func Fail[T any](v T) Result[T] {
	return Result[T]{Value: v, Message: "false"}
}

// Fault is a captured fault.
func Fault[T any](err error) Result[T] {
	return Result[T]{Message: Exception(err)}
}

// Unsupported is the outcome of a capability the backend does not
// implement.
func Unsupported[T any](backend, op string) Result[T] {
	return Fault[T](fmt.Errorf("%w: %s does not support %s", ErrUnsupported, backend, op))
}

// Faulted reports whether the outcome is a captured fault.
func (r Result[T]) Faulted() bool {
	return strings.HasPrefix(r.Message, ExceptionMarker)
}

// Exception renders err as a diagnostic.
func Exception(err error) string {
	desc := err.Error()
	if runes := []rune(desc); len(runes) > maxDescription {
		desc = string(runes[:maxDescription])
	}
	return ExceptionMarker + desc
}

// Capture runs one capability call. fn reports the value, whether the
// outcome is positive, and any fault; a panic is captured as a fault too.
func Capture[T any](fn func() (T, bool, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Fault[T](fmt.Errorf("panic: %v", r))
		}
	}()
	v, ok, err := fn()
	switch {
	case err != nil:
		return Fault[T](err)
	case ok:
		return Ok(v)
	default:
		return Fail(v)
	}
}

// Locator resolves paths to the locators the other capabilities act on.
type Locator interface {
	ResolveExisting(ctx context.Context, path string) Result[locator.Locator]
	ResolveForNew(ctx context.Context, path string) Result[locator.Locator]
}

// MoveTargets are the two locators a move needs.
type MoveTargets struct {
	From locator.Locator
	// To is the destination folder.
	To locator.Locator
}

// MoveLocator is implemented by locator backends that resolve both ends of
// a move in one chained flow. toDir ends with a separator.
type MoveLocator interface {
	ResolveForMove(ctx context.Context, from, toDir string) Result[MoveTargets]
}

// Lifecycle manages a located object. Path-valued results are the reverse
// path of the affected object, nil when it has none.
type Lifecycle interface {
	Delete(ctx context.Context, l locator.Locator) Result[*string]
	Size(ctx context.Context, l locator.Locator) Result[int64]
	// ModifiedTime is in unix seconds.
	ModifiedTime(ctx context.Context, l locator.Locator) Result[int64]
	Rename(ctx context.Context, l locator.Locator, to string) Result[*string]
	Move(ctx context.Context, from, to locator.Locator) Result[*string]
}

// Access reads and writes the content of a located object. Content is
// codec-encoded text.
type Access interface {
	Read(ctx context.Context, l locator.Locator) Result[string]
	Write(ctx context.Context, l locator.Locator, content string) Result[*string]
}
