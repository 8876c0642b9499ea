package locker

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	key := uuid.New()

	const goroutines = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Errorf("counter = %d, want %d", counter, goroutines)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	a, b := uuid.New(), uuid.New()

	unlockA := km.Lock(a)

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(b)
		unlockB()
		close(done)
	}()

	// Holding a must not block b.
	<-done
	unlockA()
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := NewKeyedMutex()
	key := uuid.New()

	unlock := km.Lock(key)
	unlock()
	unlock() // double unlock is a no-op

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.entries) != 0 {
		t.Errorf("entries map should be empty after release, got %d", len(km.entries))
	}
}
