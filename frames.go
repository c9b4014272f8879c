package main

import (
	"github.com/google/btree"
)

// frameAllocator hands out free physical frames lowest address first.
// Frames are never returned; the resident set only grows.
type frameAllocator struct {
	free *btree.BTreeG[Frame]
}

func frameLess(a, b Frame) bool { return a.Start < b.Start }

// newFrameAllocator makes every frame in [start, end) available.
func newFrameAllocator(start, end PhysAddr) *frameAllocator {
	fa := &frameAllocator{free: btree.NewG(8, frameLess)}
	for pa := frameContaining(start + pageSize - 1).Start; pa+pageSize <= end; pa += pageSize {
		fa.free.ReplaceOrInsert(Frame{Start: pa})
	}
	return fa
}

// AllocateFrame returns one unused frame, or false when none are left.
func (fa *frameAllocator) AllocateFrame() (Frame, bool) {
	return fa.free.DeleteMin()
}

// Free returns the number of unallocated frames.
func (fa *frameAllocator) Free() int { return fa.free.Len() }

// lockedFrameAllocator serialises access to the process-wide allocator.
type lockedFrameAllocator struct {
	mu spinMutex
	fa *frameAllocator
}

func (l *lockedFrameAllocator) AllocateFrame() (Frame, bool) {
	l.mu.lock()
	defer l.mu.unlock()
	return l.fa.AllocateFrame()
}
