// Package enginerr defines the sentinel error kinds named in spec.md §7.
// The Engine returns these values as they are; callers compare with
// errors.Is.
package enginerr

import "errors"

var (
	// ErrNotStarted is returned when a public Engine method is called
	// before Start, or after Shutdown has completed.
	ErrNotStarted = errors.New("engine: not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrAdmissionRefused is returned when the Admission Gate reports
	// CRITICAL at submission time.
	ErrAdmissionRefused = errors.New("engine: admission refused, system under load")

	// ErrQueueFull is returned when the Input Queue is at bounded capacity.
	ErrQueueFull = errors.New("engine: input queue full")
)
