package lifecycle

import (
	"sync"
	"testing"
)

func TestVersionNonEmpty(t *testing.T) {
	if Version == "" {
		t.Fatal("Version must be non-empty")
	}

	first := Version
	for i := 0; i < 10; i++ {
		if Version != first {
			t.Fatalf("Version changed between calls: %q vs %q", first, Version)
		}
	}
}

func TestVersionBeforeInit(t *testing.T) {
	// Version is readable regardless of initialization state.
	before := Version

	if code := Init(); code != StatusOK {
		t.Fatalf("Init returned %d, want %d", code, StatusOK)
	}

	if Version != before {
		t.Errorf("Version differs across Init: %q vs %q", before, Version)
	}
}

func TestInitIdempotent(t *testing.T) {
	if code := Init(); code != StatusOK {
		t.Fatalf("First Init returned %d, want %d", code, StatusOK)
	}
	if !Initialized() {
		t.Fatal("Initialized() should be true after successful Init")
	}

	if code := Init(); code != StatusOK {
		t.Errorf("Second Init returned %d, want %d", code, StatusOK)
	}
	if !Initialized() {
		t.Error("Initialized() should remain true after repeated Init")
	}
}

func TestInitConcurrent(t *testing.T) {
	const goroutines = 50

	var wg sync.WaitGroup
	codes := make([]int32, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			codes[idx] = Init()
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != StatusOK {
			t.Errorf("goroutine %d: Init returned %d, want %d", i, code, StatusOK)
		}
	}

	if !Initialized() {
		t.Error("Initialized() should be true after concurrent Init calls")
	}
}
