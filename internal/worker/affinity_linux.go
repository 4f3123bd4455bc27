//go:build linux

package worker

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// pinToCPU binds the calling OS thread (pid 0 to sched_setaffinity) to a
// single core; other threads of the process keep their affinity. Absence of the
// capability (e.g. running in a restricted container) is tolerated by the
// caller, per spec §4.6.
func pinToCPU(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

// applyNice sets the niceness for the process id; on Linux this applies to
// the thread whose id equals it, the main thread. Tolerant of failure
// (spec §4.6).
func applyNice(level int) error {
	return syscall.Setpriority(syscall.PRIO_PROCESS, os.Getpid(), level)
}
