package ambient

import (
	"errors"
	"fmt"
)

var (
	// ErrOutsideScope indicates ambient state was read with no active scope.
	ErrOutsideScope = errors.New("ambient: no active scope")
	// ErrUninitializedContext indicates the active scope never entered a value
	// for the requested key.
	ErrUninitializedContext = errors.New("ambient: key has no value in the active scope")
	// ErrKeyNameRequired indicates a missing key name.
	ErrKeyNameRequired = errors.New("ambient: key name must be provided")
	// ErrKeyRegistered indicates a second registration attempt for a taken
	// key name.
	ErrKeyRegistered = errors.New("ambient: key already registered")
	// ErrAccessorNotFound indicates a binder lookup for an unregistered name.
	ErrAccessorNotFound = errors.New("ambient: accessor not registered")
)

// OutsideScopeError reports an accessor used with no active scope. It always
// surfaces synchronously and wraps ErrOutsideScope for errors.Is checks.
type OutsideScopeError struct {
	Key string
}

func (e *OutsideScopeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ambient: key %q accessed outside any scope", e.Key)
}

func (e *OutsideScopeError) Unwrap() error {
	return ErrOutsideScope
}

// UninitializedContextError reports an accessor used for a key the active
// scope never entered. It wraps ErrUninitializedContext.
type UninitializedContextError struct {
	Key string
}

func (e *UninitializedContextError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("ambient: key %q has no value in the active scope", e.Key)
}

func (e *UninitializedContextError) Unwrap() error {
	return ErrUninitializedContext
}
