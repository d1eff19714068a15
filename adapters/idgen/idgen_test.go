package idgen_test

import (
	"sync"
	"testing"

	"github.com/artpar/tablegate/adapters/idgen"
	"github.com/google/uuid"
)

func TestUUID_New(t *testing.T) {
	id := idgen.UUID{}.New()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("New() = %q is not a UUID: %v", id, err)
	}
	if id == (idgen.UUID{}).New() {
		t.Error("two UUIDs are equal")
	}
}

func TestCounter_Sequence(t *testing.T) {
	c := idgen.NewCounter("user-")
	for _, want := range []string{"user-1", "user-2", "user-3"} {
		if got := c.New(); got != want {
			t.Errorf("New() = %q, want %q", got, want)
		}
	}
}

func TestCounter_Concurrent(t *testing.T) {
	c := idgen.NewCounter("")
	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := c.New()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Errorf("got %d unique IDs, want 50", len(seen))
	}
}
