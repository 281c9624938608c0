// Package apperr defines the error taxonomy shared by the workflow, the providers and the store.
// Callers classify with the Is* helpers; every type unwraps to its cause.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError is bad or missing caller input. No side effects were taken.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// Validation builds a ValidationError for field.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// ProviderError means an external provider was unavailable or returned unusable data.
type ProviderError struct {
	Provider string
	err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.err)
}

func (e *ProviderError) Unwrap() error {
	return e.err
}

// Provider wraps err as a ProviderError attributed to provider.
func Provider(provider string, err error) error {
	if err == nil {
		err = errors.New("unavailable")
	}
	return &ProviderError{Provider: provider, err: err}
}

// StorageError is a failure at the persistence boundary.
type StorageError struct {
	Op  string
	err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.err)
}

func (e *StorageError) Unwrap() error {
	return e.err
}

// Storage wraps err as a StorageError for op. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsProvider(err error) bool {
	var p *ProviderError
	return errors.As(err, &p)
}

func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
