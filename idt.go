package main

import (
	"errors"
	"fmt"
)

// InterruptStackFrame is the return frame the CPU pushes before invoking
// a framed handler.
type InterruptStackFrame struct {
	InstructionPointer uint64
	CodeSegment        uint64
	CPUFlags           uint64
	StackPointer       uint64
	StackSegment       uint64
}

func (f *InterruptStackFrame) String() string {
	return fmt.Sprintf("InterruptStackFrame {\n"+
		"    instruction_pointer: %#x,\n"+
		"    code_segment: %#x,\n"+
		"    cpu_flags: %#x,\n"+
		"    stack_pointer: %#x,\n"+
		"    stack_segment: %#x,\n"+
		"}",
		f.InstructionPointer, f.CodeSegment, f.CPUFlags, f.StackPointer, f.StackSegment)
}

// Handler calling conventions.
type (
	HandlerFunc            func(frame *InterruptStackFrame)
	HandlerFuncWithErrCode func(frame *InterruptStackFrame, code uint64)
	PageFaultHandlerFunc   func(frame *InterruptStackFrame, code PageFaultErrorCode)

	// DivergingHandlerFunc must never return.
	DivergingHandlerFunc func(frame *InterruptStackFrame, code uint64)

	// RawEntry is entered with only the CPU's return frame on the stack.
	// It owns every register and must leave through CPU.iretq.
	RawEntry func(c *CPU)
)

type entryKind uint8

const (
	entryUnused entryKind = iota
	entryFramed
	entryFramedErrCode
	entryPageFault
	entryDiverging
	entryRaw
)

func (k entryKind) String() string {
	switch k {
	case entryUnused:
		return "unused"
	case entryFramed:
		return "framed"
	case entryFramedErrCode:
		return "framed(error code)"
	case entryPageFault:
		return "framed(page fault)"
	case entryDiverging:
		return "diverging"
	case entryRaw:
		return "raw"
	}
	return "invalid"
}

// Entry is one slot of the table. Exactly one of the handler fields is
// set, as selected by kind.
type Entry struct {
	kind       entryKind
	handler    HandlerFunc
	handlerErr HandlerFuncWithErrCode
	pageFault  PageFaultHandlerFunc
	diverging  DivergingHandlerFunc
	raw        RawEntry

	// ist is the hardware encoding: zero keeps the current stack, n
	// switches to interrupt stack table slot n-1.
	ist uint8
}

// SetStackIndex makes the CPU switch to the given interrupt stack table
// slot before pushing the frame for this entry.
func (e *Entry) SetStackIndex(index uint16) *Entry {
	e.ist = uint8(index + 1)
	return e
}

func (e *Entry) present() bool { return e.kind != entryUnused }

// InterruptDescriptorTable maps every vector to its entry.
type InterruptDescriptorTable struct {
	entries [256]Entry
}

// SetHandler installs a framed handler for a vector without an error code.
func (t *InterruptDescriptorTable) SetHandler(v Vector, fn HandlerFunc) *Entry {
	t.entries[v] = Entry{kind: entryFramed, handler: fn}
	return &t.entries[v]
}

// SetHandlerWithErrCode installs a framed handler for a vector the CPU
// pushes an error code for.
func (t *InterruptDescriptorTable) SetHandlerWithErrCode(v Vector, fn HandlerFuncWithErrCode) *Entry {
	t.entries[v] = Entry{kind: entryFramedErrCode, handlerErr: fn}
	return &t.entries[v]
}

// SetPageFaultHandler installs the page fault handler.
func (t *InterruptDescriptorTable) SetPageFaultHandler(fn PageFaultHandlerFunc) *Entry {
	t.entries[PageFault] = Entry{kind: entryPageFault, pageFault: fn}
	return &t.entries[PageFault]
}

// SetDivergingHandler installs a handler that never returns.
func (t *InterruptDescriptorTable) SetDivergingHandler(v Vector, fn DivergingHandlerFunc) *Entry {
	t.entries[v] = Entry{kind: entryDiverging, diverging: fn}
	return &t.entries[v]
}

// SetRawEntry binds v directly to fn, bypassing frame handling.
func (t *InterruptDescriptorTable) SetRawEntry(v Vector, fn RawEntry) *Entry {
	t.entries[v] = Entry{kind: entryRaw, raw: fn}
	return &t.entries[v]
}

// Kind reports how v is dispatched.
func (t *InterruptDescriptorTable) Kind(v Vector) string {
	return t.entries[v].kind.String()
}

var errMalformedTable = errors.New("malformed interrupt descriptor table")

// validate checks the calling convention of every populated slot.
func (t *InterruptDescriptorTable) validate() error {
	raw := -1
	for i := range t.entries {
		v, e := Vector(i), &t.entries[i]
		switch e.kind {
		case entryUnused:
			continue
		case entryFramed:
			if v.pushesErrorCode() {
				return fmt.Errorf("%w: %v pushes an error code", errMalformedTable, v)
			}
		case entryFramedErrCode:
			if !v.pushesErrorCode() {
				return fmt.Errorf("%w: %v has no error code", errMalformedTable, v)
			}
		case entryPageFault:
			if v != PageFault {
				return fmt.Errorf("%w: page fault handler on %v", errMalformedTable, v)
			}
		case entryDiverging:
			if v != DoubleFault {
				return fmt.Errorf("%w: diverging handler on %v", errMalformedTable, v)
			}
		case entryRaw:
			if v < firstDeviceVector {
				return fmt.Errorf("%w: raw entry on reserved %v", errMalformedTable, v)
			}
			if raw >= 0 {
				return fmt.Errorf("%w: raw entries on %#x and %#x", errMalformedTable, raw, i)
			}
			raw = i
		default:
			return fmt.Errorf("%w: slot %#x kind %d", errMalformedTable, i, e.kind)
		}
		if e.ist > 7 {
			return fmt.Errorf("%w: %v stack index %d", errMalformedTable, v, e.ist-1)
		}
	}
	return nil
}
