//go:build !linux

package worker

import "errors"

// pinToCPU is a no-op outside Linux; CPU affinity is a platform capability
// the engine tolerates the absence of (spec §4.6, §6).
func pinToCPU(cpuID int) error {
	return errors.New("worker: cpu affinity not supported on this platform")
}

// applyNice is a no-op outside Linux for the same reason.
func applyNice(level int) error {
	return errors.New("worker: nice level not supported on this platform")
}
