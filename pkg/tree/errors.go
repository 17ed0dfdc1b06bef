package tree

import (
	"errors"
	"fmt"
)

// Kind classifies a tree operation failure.
type Kind string

const (
	KindNoSuchPage            Kind = "no-such-page"
	KindNoSuchParent          Kind = "no-such-parent"
	KindCannotMoveRoot        Kind = "cannot-move-root"
	KindCannotMoveParked      Kind = "cannot-move-parked"
	KindCannotMoveTrashRoot   Kind = "cannot-move-trash-root"
	KindTrashMustBeLast       Kind = "trash-must-be-last"
	KindInvalidPosition       Kind = "invalid-position"
	KindForbidden             Kind = "forbidden"
	KindParentNotPublishable  Kind = "parent-not-publishable"
	KindCannotMoveAfterParked Kind = "cannot-move-after-parked"
	KindCannotMoveIntoSelf    Kind = "cannot-move-into-self"
)

// Error is returned by tree operations that were refused before any write.
// Store failures are never converted to an Error; they are wrapped and
// returned as they are.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNoSuchPage)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNoSuchPage            = &Error{Kind: KindNoSuchPage}
	ErrNoSuchParent          = &Error{Kind: KindNoSuchParent}
	ErrCannotMoveRoot        = &Error{Kind: KindCannotMoveRoot}
	ErrCannotMoveParked      = &Error{Kind: KindCannotMoveParked}
	ErrCannotMoveTrashRoot   = &Error{Kind: KindCannotMoveTrashRoot}
	ErrTrashMustBeLast       = &Error{Kind: KindTrashMustBeLast}
	ErrInvalidPosition       = &Error{Kind: KindInvalidPosition}
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrParentNotPublishable  = &Error{Kind: KindParentNotPublishable}
	ErrCannotMoveAfterParked = &Error{Kind: KindCannotMoveAfterParked}
	ErrCannotMoveIntoSelf    = &Error{Kind: KindCannotMoveIntoSelf}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CascadeError reports a failure after a move was committed. The moved page
// already sits at its new position; Changes lists the slug rewrites that
// were written before the failure. Passing Request to Tree.Cascade finishes
// the work.
type CascadeError struct {
	Request CascadeRequest
	Changes []SlugChange
	Err     error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade from %s to %s incomplete after %d slug changes: %v",
		e.Request.OldPath, e.Request.NewPath, len(e.Changes), e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
