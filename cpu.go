package main

import (
	"context"
	"fmt"
	"io"
)

// General purpose register numbers, in encoding order.
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

var regNames = [...]string{"RAX", "RCX", "RDX", "RBX", "RSP", "RBP", "RSI", "RDI",
	"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15"}

const (
	kernelCS = 0x08
	kernelSS = 0x10

	flagReserved = 1 << 1
	flagIF       = 1 << 9

	// maxRefaults bounds how often one instruction may fault before the
	// machine gives up on it.
	maxRefaults = 8
)

// CPU is a single x86-64 core running in ring 0.
type CPU struct {
	bus *portBus
	mem *physmem
	ctx context.Context

	R      [16]uint64 // general purpose registers
	rip    uint64
	rflags uint64
	cr2    uint64
	cr3    uint64

	idt *InterruptDescriptorTable
	tss *TaskStateSegment

	tlb        map[Page]tlbEntry
	tlbFlushes int

	depth int // handlers entered and not yet returned from
}

func newCPU(ctx context.Context, bus *portBus, mem *physmem) *CPU {
	return &CPU{
		bus:    bus,
		mem:    mem,
		ctx:    ctx,
		rflags: flagReserved,
		rip:    0x0010_0000,
		tlb:    make(map[Page]tlbEntry),
	}
}

// execute runs op as one instruction of length bytes. Pending interrupts
// are taken first. An op that faults is delivered and then executed
// again.
func (c *CPU) execute(length uint64, op func()) {
	c.interrupt()
	for n := 0; ; n++ {
		if n > maxRefaults {
			panic(halt{fmt.Sprintf("instruction at %#x faulted %d times", c.rip, n)})
		}
		f, ok := c.try(op)
		if ok {
			c.rip += length
			return
		}
		c.deliver(f.vec, f.code, false)
	}
}

// try runs op and recovers a fault raised by it.
func (c *CPU) try(op func()) (f fault, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ft, isFault := r.(fault)
			if !isFault {
				panic(r)
			}
			f = ft
		}
	}()
	op()
	return fault{}, true
}

// Load64 reads the quadword at va.
func (c *CPU) Load64(va VirtAddr) uint64 {
	var v uint64
	c.execute(4, func() { v = c.read64(va) })
	return v
}

// Store64 writes v to the quadword at va.
func (c *CPU) Store64(va VirtAddr, v uint64) {
	c.execute(4, func() { c.write64(va, v) })
}

// Int3 raises a breakpoint trap.
func (c *CPU) Int3() {
	c.interrupt()
	c.rip++
	c.deliver(Breakpoint, 0, false)
}

// Int raises software interrupt v. Exceptions that carry an error code
// receive zero.
func (c *CPU) Int(v Vector) {
	c.interrupt()
	c.rip += 2
	c.deliver(v, 0, false)
}

// Hlt waits until an interrupt has been taken.
func (c *CPU) Hlt() {
	for !c.interrupt() {
		c.bus.wait(c.ctx)
	}
}

func (c *CPU) In8(port uint16) uint8     { return c.bus.in8(port) }
func (c *CPU) Out8(port uint16, v uint8) { c.bus.out8(port, v) }

func (c *CPU) read32(pa PhysAddr) uint32     { return c.bus.read32(pa) }
func (c *CPU) write32(pa PhysAddr, v uint32) { c.bus.write32(pa, v) }

func (c *CPU) Sti() { c.rflags |= flagIF }
func (c *CPU) Cli() { c.rflags &^= flagIF }

func (c *CPU) interruptsEnabled() bool { return c.rflags&flagIF != 0 }

// withoutInterrupts runs fn with interrupts masked, restoring the
// previous state afterwards.
func (c *CPU) withoutInterrupts(fn func()) {
	enabled := c.interruptsEnabled()
	c.Cli()
	fn()
	if enabled {
		c.Sti()
	}
}

// readCR2 returns the last page fault address.
func (c *CPU) readCR2() VirtAddr { return VirtAddr(c.cr2) }

func (c *CPU) stackPointer() uint64 { return c.R[RSP] }

// Lidt loads t as the interrupt descriptor table.
func (c *CPU) Lidt(t *InterruptDescriptorTable) { c.idt = t }

// Ltr loads t as the task state segment.
func (c *CPU) Ltr(t *TaskStateSegment) { c.tss = t }

// interrupt delivers the highest priority pending external interrupt if
// interrupts are enabled, and reports whether it did.
func (c *CPU) interrupt() bool {
	c.bus.poll()
	if !c.interruptsEnabled() {
		return false
	}
	v, ok := c.bus.acknowledge()
	if !ok {
		return false
	}
	c.deliver(v, 0, true)
	return true
}

// deliver pushes the return frame for v and runs its entry. Faults while
// pushing escalate to a double fault or, past that, a triple fault.
func (c *CPU) deliver(v Vector, code uint64, external bool) {
	for {
		if c.idt == nil {
			panic(halt{fmt.Sprintf("triple fault: %v with no interrupt descriptor table", v)})
		}
		e := &c.idt.entries[v]
		hasCode := v.pushesErrorCode() && !external
		var sp uint64
		f, ok := c.try(func() {
			if !e.present() {
				ext := uint64(0)
				if external {
					ext = 1
				}
				panic(fault{vec: SegmentNotPresent, code: uint64(v)<<3 | 2 | ext})
			}
			sp = c.pushFrame(e, hasCode, code)
		})
		if ok {
			c.R[RSP] = sp
			c.rflags &^= flagIF
			c.depth++
			c.dispatch(v, e, hasCode)
			return
		}
		next, ok := escalate(v, f.vec)
		if !ok {
			panic(halt{fmt.Sprintf("triple fault: %v while delivering %v", f.vec, v)})
		}
		if next == DoubleFault {
			f.code = 0
		}
		v, code, external = next, f.code, false
	}
}

// pushFrame writes the return frame on the stack selected by e and
// returns the new stack pointer without committing it.
func (c *CPU) pushFrame(e *Entry, hasCode bool, code uint64) uint64 {
	sp := c.R[RSP]
	if e.ist != 0 {
		if c.tss == nil {
			panic(fault{vec: InvalidTSS})
		}
		sp = c.tss.IST[e.ist-1]
	}
	sp &^= 0xf
	push := func(v uint64) {
		sp -= 8
		c.write64(VirtAddr(sp), v)
	}
	push(kernelSS)
	push(c.R[RSP])
	push(c.rflags)
	push(kernelCS)
	push(c.rip)
	if hasCode {
		push(code)
	}
	return sp
}

// dispatch runs e for v. The frame is already on the stack.
func (c *CPU) dispatch(v Vector, e *Entry, hasCode bool) {
	if e.kind == entryRaw {
		depth := c.depth
		e.raw(c)
		if c.depth >= depth {
			panic(halt{fmt.Sprintf("raw entry for %v returned without iretq", v)})
		}
		return
	}

	var code uint64
	if hasCode {
		code = c.read64(VirtAddr(c.R[RSP]))
		c.R[RSP] += 8
	}
	frame := c.returnFrame()
	switch e.kind {
	case entryFramed:
		e.handler(&frame)
	case entryFramedErrCode:
		e.handlerErr(&frame, code)
	case entryPageFault:
		e.pageFault(&frame, PageFaultErrorCode(code))
	case entryDiverging:
		e.diverging(&frame, code)
		panic(halt{fmt.Sprintf("%v handler returned", v)})
	}
	c.iretq()
}

// returnFrame reads the interrupt return frame at the top of the stack.
func (c *CPU) returnFrame() InterruptStackFrame {
	sp := VirtAddr(c.R[RSP])
	return InterruptStackFrame{
		InstructionPointer: c.read64(sp),
		CodeSegment:        c.read64(sp + 8),
		CPUFlags:           c.read64(sp + 16),
		StackPointer:       c.read64(sp + 24),
		StackSegment:       c.read64(sp + 32),
	}
}

// setReturnFrame replaces the interrupt return frame at the top of the
// stack.
func (c *CPU) setReturnFrame(f InterruptStackFrame) {
	sp := VirtAddr(c.R[RSP])
	c.write64(sp, f.InstructionPointer)
	c.write64(sp+8, f.CodeSegment)
	c.write64(sp+16, f.CPUFlags)
	c.write64(sp+24, f.StackPointer)
	c.write64(sp+32, f.StackSegment)
}

// iretq returns from the current handler.
func (c *CPU) iretq() {
	f := c.returnFrame()
	c.rip = f.InstructionPointer
	c.rflags = f.CPUFlags | flagReserved
	c.R[RSP] = f.StackPointer
	c.depth--
}

// dumpRegisters writes the register file to w.
func (c *CPU) dumpRegisters(w io.Writer) {
	for i := 0; i < len(c.R); i += 2 {
		fmt.Fprintf(w, "%-3s = %016x %-3s = %016x\n", regNames[i], c.R[i], regNames[i+1], c.R[i+1])
	}
	fmt.Fprintf(w, "RIP = %016x RFL = %016x\n", c.rip, c.rflags)
	fmt.Fprintf(w, "CR2 = %016x CR3 = %016x\n", c.cr2, c.cr3)
}
