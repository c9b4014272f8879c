package main

import (
	"strings"
)

// PageFaultErrorCode is the error code the CPU pushes for a page fault.
type PageFaultErrorCode uint64

const (
	ProtectionViolation PageFaultErrorCode = 1 << 0
	CausedByWrite       PageFaultErrorCode = 1 << 1
	UserMode            PageFaultErrorCode = 1 << 2
	MalformedTable      PageFaultErrorCode = 1 << 3
	InstructionFetch    PageFaultErrorCode = 1 << 4
)

func (c PageFaultErrorCode) String() string {
	var s []string
	if c&ProtectionViolation != 0 {
		s = append(s, "PROTECTION_VIOLATION")
	}
	if c&CausedByWrite != 0 {
		s = append(s, "CAUSED_BY_WRITE")
	}
	if c&UserMode != 0 {
		s = append(s, "USER_MODE")
	}
	if c&MalformedTable != 0 {
		s = append(s, "MALFORMED_TABLE")
	}
	if c&InstructionFetch != 0 {
		s = append(s, "INSTRUCTION_FETCH")
	}
	if len(s) == 0 {
		return "(empty)"
	}
	return strings.Join(s, " | ")
}

type tlbEntry struct {
	frame    Frame
	writable bool
}

// translate walks the page tables rooted at CR3. Accesses that cannot be
// satisfied load CR2 and raise a page fault; non-canonical addresses
// raise a general protection fault.
func (c *CPU) translate(va VirtAddr, write bool) PhysAddr {
	if !va.canonical() {
		panic(fault{vec: GeneralProtectionFault})
	}
	page := pageContaining(va)
	offset := PhysAddr(va - page.Start)
	if e, ok := c.tlb[page]; ok && (!write || e.writable) {
		return e.frame.Start + offset
	}
	table := frameContaining(PhysAddr(c.cr3))
	writable := true
	for level := pageLevels; level >= 1; level-- {
		e := pageTableEntry(c.mem.read64(table.Start + PhysAddr(va.tableIndex(level)*8)))
		if !e.present() {
			c.pageFault(va, write, false)
		}
		writable = writable && e.flags()&Writable != 0
		table = e.frame()
	}
	if write && !writable {
		c.pageFault(va, write, true)
	}
	c.tlb[page] = tlbEntry{frame: table, writable: writable}
	return table.Start + offset
}

func (c *CPU) pageFault(va VirtAddr, write, present bool) {
	c.cr2 = uint64(va)
	var code PageFaultErrorCode
	if present {
		code |= ProtectionViolation
	}
	if write {
		code |= CausedByWrite
	}
	panic(fault{vec: PageFault, code: uint64(code)})
}

// Invlpg drops any cached translation for the page containing va.
func (c *CPU) Invlpg(va VirtAddr) {
	delete(c.tlb, pageContaining(va))
	c.tlbFlushes++
}

// writeCR3 switches address spaces and flushes the TLB.
func (c *CPU) writeCR3(pml4 Frame) {
	c.cr3 = uint64(pml4.Start)
	clear(c.tlb)
}

func (c *CPU) read64(va VirtAddr) uint64 {
	return c.mem.read64(c.translate(va, false))
}

func (c *CPU) write64(va VirtAddr, v uint64) {
	c.mem.write64(c.translate(va, true), v)
}
