//go:build linux

package pool

import "golang.org/x/sys/unix"

// pinToCPU pins the calling OS thread to a single core. The caller must
// already hold runtime.LockOSThread so the pin survives for the worker's
// lifetime rather than following the goroutine to a different thread.
func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
