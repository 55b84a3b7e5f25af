// Package apperr holds the error classes shared across services. Component
// errors wrap one of these so that handlers can classify with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigurationMissing means a credential is absent or still a placeholder.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrProvider means an external API rejected the request.
	ErrProvider = errors.New("provider error")
	// ErrValidation means malformed plan or request data.
	ErrValidation = errors.New("validation error")
	// ErrNotFound means a member, plan or checkout is missing.
	ErrNotFound = errors.New("not found")
	// ErrPersistenceDenied means the storage access policy rejected a write.
	ErrPersistenceDenied = errors.New("persistence denied")
	// ErrConflict means the request contradicts stored state.
	ErrConflict = errors.New("conflict")
)

// New returns a sentinel that matches both its own identity and class.
func New(class error, msg string) error {
	return &classed{class: class, msg: msg}
}

type classed struct {
	class error
	msg   string
}

func (e *classed) Error() string { return e.msg }

func (e *classed) Is(target error) bool { return target == e.class }

// ProviderError carries the external provider's message verbatim.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
