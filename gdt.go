package main

import "fmt"

// doubleFaultISTIndex is the interrupt stack table slot reserved for the
// double fault handler.
const doubleFaultISTIndex = 0

// Kernel virtual memory layout. Every stack has an unmapped guard page
// below it.
const (
	kernelStackBottom VirtAddr = 0xffff_ff00_0000_1000
	kernelStackPages           = 4
	kernelStackTop             = kernelStackBottom + kernelStackPages*pageSize

	doubleFaultStackBottom VirtAddr = 0xffff_ff00_0001_0000
	doubleFaultStackPages           = 5
	doubleFaultStackTop             = doubleFaultStackBottom + doubleFaultStackPages*pageSize
)

// TaskStateSegment holds the stacks the CPU may switch to on interrupt
// delivery.
type TaskStateSegment struct {
	RSP [3]uint64
	IST [7]uint64
}

// stack is a mapped region of kernel virtual memory.
type stack struct {
	bottom, top VirtAddr
}

func (s stack) contains(sp uint64) bool {
	return uint64(s.bottom) <= sp && sp <= uint64(s.top)
}

// mapStack backs every page of [bottom, bottom+pages*pageSize) with a
// fresh frame.
func mapStack(m *Mapper, alloc FrameAllocator, bottom VirtAddr, pages int) (stack, error) {
	for i := 0; i < pages; i++ {
		page := Page{Start: bottom + VirtAddr(i*pageSize)}
		f, ok := alloc.AllocateFrame()
		if !ok {
			return stack{}, fmt.Errorf("stack %v: %w", page, ErrFrameAllocationFailed)
		}
		flush, err := m.MapTo(page, f, Present|Writable|NoExecute, alloc)
		if err != nil {
			return stack{}, fmt.Errorf("stack: %w", err)
		}
		flush.Flush()
	}
	return stack{bottom: bottom, top: bottom + VirtAddr(pages*pageSize)}, nil
}
