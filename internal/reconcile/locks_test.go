package reconcile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLocksSerializePerUser(t *testing.T) {
	ul := newUserLocks()

	const workers = 32
	var wg sync.WaitGroup
	counter := 0 // protected only by the user lock

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := ul.Acquire("user-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestUserLocksAreIndependentAcrossUsers(t *testing.T) {
	ul := newUserLocks()

	unlockA := ul.Acquire("user-a")
	defer unlockA()

	// Holding user-a's lock must not block user-b.
	done := make(chan struct{})
	go func() {
		unlockB := ul.Acquire("user-b")
		unlockB()
		close(done)
	}()
	<-done
}

func TestUserLocksReacquireAfterRelease(t *testing.T) {
	ul := newUserLocks()

	unlock := ul.Acquire("user-1")
	unlock()
	unlock = ul.Acquire("user-1")
	unlock()
}
