// Package lifecycle owns the process-wide initialization gate for
// avila-arrow. Init must succeed before serving components (the IPC
// compute server) accept work; Version is callable at any time.
package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Version is the current version of the avila-arrow library.
const Version = "1.0.0"

// Init status codes. Zero means success; the values are stable because
// they cross the C ABI unchanged.
const (
	StatusOK               int32 = 0
	StatusAllocatorFailure int32 = 1
)

var (
	initialized atomic.Bool
	initMu      sync.Mutex
)

// Init performs process-wide initialization. It is idempotent and safe
// for concurrent invocation: every successful call returns StatusOK,
// and the transition to the initialized state is visible to all
// goroutines before any Init call returns.
//
// A failed call leaves the library uninitialized and may be retried.
func Init() int32 {
	if initialized.Load() {
		return StatusOK
	}

	initMu.Lock()
	defer initMu.Unlock()

	if initialized.Load() {
		return StatusOK
	}

	if !allocatorUsable() {
		return StatusAllocatorFailure
	}

	initialized.Store(true)
	return StatusOK
}

// Initialized reports whether a successful Init has completed. The
// flag is monotonic: once true it never reverts for the lifetime of
// the process.
func Initialized() bool {
	return initialized.Load()
}

// allocatorUsable round-trips a small buffer through the Arrow
// allocator the rest of the library will use.
func allocatorUsable() bool {
	mem := memory.DefaultAllocator

	buf := mem.Allocate(64)
	if len(buf) != 64 {
		return false
	}
	buf[0] = 0xA5
	mem.Free(buf)
	return true
}
