package compute

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when a device backend was not compiled in
	// or no suitable device exists.
	ErrUnavailable = errors.New("compute: device not available")

	// ErrReleased is returned by a backend used after Cleanup.
	ErrReleased = errors.New("compute: backend released")

	// ErrSize is returned when a hand-off state does not match the backend.
	ErrSize = errors.New("compute: particle count mismatch")
)

// DeviceError is a failed call into a device or graphics API. Log carries
// the compiler or linker output when the failure was a build step.
type DeviceError struct {
	Op     string
	Status int
	Log    string
	Err    error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("compute: %s failed (status %d)", e.Op, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Log != "" {
		msg += "\n" + e.Log
	}
	return msg
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ConfigError is a configuration that cannot be honored by a backend.
type ConfigError struct {
	Resource string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("compute: invalid %s: %s", e.Resource, e.Reason)
}
