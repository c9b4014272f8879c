package main

import "sync"

// spinMutex guards state shared with interrupt handlers. With interrupts
// masked there is no other context that could release a held lock, so
// contention can only mean re-entry and halts the machine instead of
// waiting.
type spinMutex struct {
	name string
	mu   sync.Mutex
}

func (s *spinMutex) lock() {
	if !s.mu.TryLock() {
		panic(halt{"deadlock: " + s.name + " lock already held"})
	}
}

func (s *spinMutex) unlock() { s.mu.Unlock() }
