package projector

import (
	"fmt"
	"sync"
)

// KeyLocks serializes work per (company_id, animal_number) key. Two concurrent
// writers for the same animal must not interleave their read-decide-append
// steps, or the snapshot can diverge from replay-from-scratch.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyLocks creates an empty lock table
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for one animal key and returns its unlock func
func (k *KeyLocks) Lock(companyID int64, animalNumber string) func() {
	key := fmt.Sprintf("%d|%s", companyID, animalNumber)

	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
