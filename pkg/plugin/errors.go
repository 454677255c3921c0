package plugin

import (
	"errors"
	"fmt"
	"time"
)

// Common plugin errors that can be checked with errors.Is().
var (
	// ErrPluginNotFound is returned when a named plugin is not registered.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPluginDisabled is returned when a call targets a disabled plugin.
	ErrPluginDisabled = errors.New("plugin disabled")

	// ErrPluginTimeout is returned when a hook exceeds its deadline.
	ErrPluginTimeout = errors.New("plugin hook timed out")

	// ErrFactoryNotFound is returned when a manifest's entry point has no
	// registered factory.
	ErrFactoryNotFound = errors.New("plugin factory not found")

	// ErrInvalidTransition is returned for lifecycle transitions the
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// PluginTimeoutError reports a hook that exceeded its deadline.
type PluginTimeoutError struct {
	Plugin  string
	Hook    string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *PluginTimeoutError) Error() string {
	return fmt.Sprintf("plugin %s: hook %s timed out after %s", e.Plugin, e.Hook, e.Timeout)
}

// Is implements error matching for errors.Is().
func (e *PluginTimeoutError) Is(target error) bool {
	return target == ErrPluginTimeout
}

// PluginExecutionError reports a hook that returned an error or panicked.
type PluginExecutionError struct {
	Plugin string
	Hook   string
	Err    error
}

// Error implements the error interface.
func (e *PluginExecutionError) Error() string {
	return fmt.Sprintf("plugin %s: hook %s failed: %v", e.Plugin, e.Hook, e.Err)
}

// Unwrap returns the underlying hook error.
func (e *PluginExecutionError) Unwrap() error {
	return e.Err
}
