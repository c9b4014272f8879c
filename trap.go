package main

import (
	"errors"
	"fmt"
)

// Vector is an x86 interrupt, exception or trap slot.
type Vector uint8

// CPU exception vectors.
const (
	DivideByZero               Vector = 0
	Debug                      Vector = 1
	NMI                        Vector = 2
	Breakpoint                 Vector = 3
	Overflow                   Vector = 4
	BoundRangeExceeded         Vector = 5
	InvalidOpcode              Vector = 6
	DeviceNotAvailable         Vector = 7
	DoubleFault                Vector = 8
	CoprocessorSegmentOverrun  Vector = 9
	InvalidTSS                 Vector = 10
	SegmentNotPresent          Vector = 11
	StackSegmentFault          Vector = 12
	GeneralProtectionFault     Vector = 13
	PageFault                  Vector = 14
	X87FloatingPointException  Vector = 16
	AlignmentCheck             Vector = 17
	MachineCheck               Vector = 18
	SIMDFloatingPointException Vector = 19
	VirtualizationException    Vector = 20
	ControlProtection          Vector = 21
	HypervisorInjection        Vector = 28
	VMMCommunication           Vector = 29
	SecurityException          Vector = 30

	// firstDeviceVector is the lowest vector not reserved by the CPU.
	firstDeviceVector Vector = 32
)

var vectorNames = [...]string{
	DivideByZero:               "DIVIDE ERROR",
	Debug:                      "DEBUG",
	NMI:                        "NMI",
	Breakpoint:                 "BREAKPOINT",
	Overflow:                   "OVERFLOW",
	BoundRangeExceeded:         "BOUND RANGE EXCEEDED",
	InvalidOpcode:              "INVALID OPCODE",
	DeviceNotAvailable:         "DEVICE NOT AVAILABLE",
	DoubleFault:                "DOUBLE FAULT",
	CoprocessorSegmentOverrun:  "COPROCESSOR SEGMENT OVERRUN",
	InvalidTSS:                 "INVALID TSS",
	SegmentNotPresent:          "SEGMENT NOT PRESENT",
	StackSegmentFault:          "STACK SEGMENT FAULT",
	GeneralProtectionFault:     "GENERAL PROTECTION FAULT",
	PageFault:                  "PAGE FAULT",
	X87FloatingPointException:  "X87 FLOATING POINT",
	AlignmentCheck:             "ALIGNMENT CHECK",
	MachineCheck:               "MACHINE CHECK",
	SIMDFloatingPointException: "SIMD FLOATING POINT",
	VirtualizationException:    "VIRTUALIZATION",
	ControlProtection:          "CONTROL PROTECTION",
	HypervisorInjection:        "HYPERVISOR INJECTION",
	VMMCommunication:           "VMM COMMUNICATION",
	SecurityException:          "SECURITY",
}

func (v Vector) String() string {
	if int(v) < len(vectorNames) && vectorNames[v] != "" {
		return vectorNames[v]
	}
	return fmt.Sprintf("vector %#02x", uint8(v))
}

// pushesErrorCode reports whether the CPU pushes an error code when
// delivering v.
func (v Vector) pushesErrorCode() bool {
	switch v {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault,
		GeneralProtectionFault, PageFault, AlignmentCheck, ControlProtection,
		VMMCommunication, SecurityException:
		return true
	}
	return false
}

// faultClass is the double fault classification of a vector.
type faultClass int

const (
	benign faultClass = iota
	contributory
	pageFaultClass
	doubleFaultClass
)

func (v Vector) class() faultClass {
	switch v {
	case DivideByZero, InvalidTSS, SegmentNotPresent, StackSegmentFault, GeneralProtectionFault:
		return contributory
	case PageFault:
		return pageFaultClass
	case DoubleFault:
		return doubleFaultClass
	}
	return benign
}

// escalate decides what the CPU delivers when second is raised while
// delivering first. It returns false when the combination is a triple
// fault.
func escalate(first, second Vector) (Vector, bool) {
	switch first.class() {
	case contributory:
		if second.class() == contributory {
			return DoubleFault, true
		}
	case pageFaultClass:
		if c := second.class(); c == contributory || c == pageFaultClass {
			return DoubleFault, true
		}
	case doubleFaultClass:
		if c := second.class(); c == contributory || c == pageFaultClass || c == doubleFaultClass {
			return 0, false
		}
	}
	return second, true
}

// fault is raised by the CPU when an instruction cannot complete.
type fault struct {
	vec  Vector
	code uint64
}

func (f fault) String() string {
	return fmt.Sprintf("fault: %v, code: %#x", f.vec, f.code)
}

// halt stops the machine. Nothing recovers from it below the machine
// boundary.
type halt struct {
	reason string
}

func (h halt) String() string {
	return "halt: " + h.reason
}

// ErrHalted is matched by every *HaltError.
var ErrHalted = errors.New("machine halted")

// HaltError describes why and where the machine stopped.
type HaltError struct {
	Reason string
	RIP    uint64
	RSP    uint64
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("machine halted: %s (rip %#x, rsp %#x)", e.Reason, e.RIP, e.RSP)
}

func (e *HaltError) Is(target error) bool { return target == ErrHalted }
