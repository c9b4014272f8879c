package main

import (
	"errors"
	"fmt"
	"strings"
)

const (
	pageSize      = 4096
	pageShift     = 12
	entriesPerPT  = 512
	pageLevels    = 4
	ptAddressMask = 0x000f_ffff_ffff_f000
)

// PhysAddr is a physical memory address.
type PhysAddr uint64

// VirtAddr is a virtual memory address.
type VirtAddr uint64

// canonical reports whether bits 48-63 are copies of bit 47.
func (va VirtAddr) canonical() bool {
	top := uint64(va) >> 47
	return top == 0 || top == 0x1ffff
}

// tableIndex returns the index of va into the page table at level, where
// level 4 is the PML4 and level 1 the last level table.
func (va VirtAddr) tableIndex(level int) uint64 {
	return (uint64(va) >> (pageShift + 9*(level-1))) & (entriesPerPT - 1)
}

// Page is a 4 KiB aligned virtual page.
type Page struct {
	Start VirtAddr
}

func pageContaining(va VirtAddr) Page { return Page{Start: va &^ (pageSize - 1)} }

func (p Page) String() string { return fmt.Sprintf("Page[%#x]", uint64(p.Start)) }

// Frame is a 4 KiB aligned physical frame.
type Frame struct {
	Start PhysAddr
}

func frameContaining(pa PhysAddr) Frame { return Frame{Start: pa &^ (pageSize - 1)} }

func (f Frame) String() string { return fmt.Sprintf("Frame[%#x]", uint64(f.Start)) }

// PageTableFlags are the flag bits of a page table entry.
type PageTableFlags uint64

const (
	Present        PageTableFlags = 1 << 0
	Writable       PageTableFlags = 1 << 1
	UserAccessible PageTableFlags = 1 << 2
	WriteThrough   PageTableFlags = 1 << 3
	NoCache        PageTableFlags = 1 << 4
	Accessed       PageTableFlags = 1 << 5
	Dirty          PageTableFlags = 1 << 6
	HugePage       PageTableFlags = 1 << 7
	Global         PageTableFlags = 1 << 8
	NoExecute      PageTableFlags = 1 << 63
)

func (f PageTableFlags) String() string {
	names := []struct {
		f    PageTableFlags
		name string
	}{
		{Present, "PRESENT"}, {Writable, "WRITABLE"}, {UserAccessible, "USER_ACCESSIBLE"},
		{WriteThrough, "WRITE_THROUGH"}, {NoCache, "NO_CACHE"}, {Accessed, "ACCESSED"},
		{Dirty, "DIRTY"}, {HugePage, "HUGE_PAGE"}, {Global, "GLOBAL"}, {NoExecute, "NO_EXECUTE"},
	}
	var s []string
	for _, n := range names {
		if f&n.f != 0 {
			s = append(s, n.name)
		}
	}
	if len(s) == 0 {
		return "(empty)"
	}
	return strings.Join(s, " | ")
}

type pageTableEntry uint64

func (e pageTableEntry) flags() PageTableFlags { return PageTableFlags(e) &^ ptAddressMask }
func (e pageTableEntry) frame() Frame          { return Frame{Start: PhysAddr(e & ptAddressMask)} }
func (e pageTableEntry) present() bool         { return PageTableFlags(e)&Present != 0 }

func makeEntry(f Frame, flags PageTableFlags) pageTableEntry {
	return pageTableEntry(uint64(f.Start)&ptAddressMask | uint64(flags))
}

// FrameAllocator hands out unused physical frames.
type FrameAllocator interface {
	AllocateFrame() (Frame, bool)
}

var (
	// ErrPageAlreadyMapped is returned by MapTo when the page already has
	// a present mapping.
	ErrPageAlreadyMapped = errors.New("page already mapped")

	// ErrFrameAllocationFailed is returned by MapTo when an intermediate
	// page table could not be allocated.
	ErrFrameAllocationFailed = errors.New("frame allocation failed")
)

// physMemory is the mapper's window onto physical memory.
type physMemory interface {
	read64(pa PhysAddr) uint64
	write64(pa PhysAddr, v uint64)
	zeroFrame(f Frame)
}

// Mapper installs mappings in the page table hierarchy rooted at its
// PML4 frame.
type Mapper struct {
	mem  physMemory
	pml4 Frame
	tlb  tlbFlusher
}

type tlbFlusher interface {
	Invlpg(va VirtAddr)
}

func newMapper(mem physMemory, pml4 Frame, tlb tlbFlusher) *Mapper {
	return &Mapper{mem: mem, pml4: pml4, tlb: tlb}
}

// flush is returned by every successful mapping change. The caller must
// call Flush before relying on the new mapping.
type flush struct {
	page Page
	tlb  tlbFlusher
}

// Flush invalidates the translation for the mapped page.
func (f flush) Flush() { f.tlb.Invlpg(f.page.Start) }

// MapTo maps page to frame with flags, allocating intermediate tables
// from alloc as needed.
func (m *Mapper) MapTo(page Page, frame Frame, flags PageTableFlags, alloc FrameAllocator) (flush, error) {
	table := m.pml4
	parentFlags := Present | Writable | (flags & UserAccessible)
	for level := pageLevels; level > 1; level-- {
		slot := table.Start + PhysAddr(page.Start.tableIndex(level)*8)
		e := pageTableEntry(m.mem.read64(slot))
		if !e.present() {
			next, ok := alloc.AllocateFrame()
			if !ok {
				return flush{}, fmt.Errorf("level %d table for %v: %w", level-1, page, ErrFrameAllocationFailed)
			}
			m.mem.zeroFrame(next)
			e = makeEntry(next, parentFlags)
			m.mem.write64(slot, uint64(e))
		} else if e.flags()&parentFlags != parentFlags {
			e |= pageTableEntry(parentFlags)
			m.mem.write64(slot, uint64(e))
		}
		table = e.frame()
	}
	slot := table.Start + PhysAddr(page.Start.tableIndex(1)*8)
	if e := pageTableEntry(m.mem.read64(slot)); e.present() {
		return flush{}, fmt.Errorf("%v -> %v: %w", page, e.frame(), ErrPageAlreadyMapped)
	}
	m.mem.write64(slot, uint64(makeEntry(frame, flags|Present)))
	return flush{page: page, tlb: m.tlb}, nil
}

// Translate returns the frame and flags of the last level entry mapping
// page.
func (m *Mapper) Translate(page Page) (Frame, PageTableFlags, bool) {
	table := m.pml4
	for level := pageLevels; level >= 1; level-- {
		e := pageTableEntry(m.mem.read64(table.Start + PhysAddr(page.Start.tableIndex(level)*8)))
		if !e.present() {
			return Frame{}, 0, false
		}
		if level == 1 {
			return e.frame(), e.flags(), true
		}
		table = e.frame()
	}
	return Frame{}, 0, false
}
