//go:build !linux

package pool

// pinToCPU is a no-op outside Linux: Darwin offers no thread affinity API
// and the other platforms this module targets aren't deployment targets
// for the worker pool. Workers still run, just without the pin.
func pinToCPU(cpu int) error { return nil }
