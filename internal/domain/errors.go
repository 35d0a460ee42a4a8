package domain

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied marks a command invoked by someone other than the owner.
var ErrPermissionDenied = errors.New("permission denied")

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// FetchError wraps an upstream failure that prevents a sound fetch decision.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DeliveryError is a per-item send failure. The item stays unmarked.
type DeliveryError struct {
	Channel   string
	Retryable bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
