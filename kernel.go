package main

import (
	"fmt"
	"sync/atomic"
)

const (
	lowMemoryEnd PhysAddr = 0x10_0000

	// apicInitialCount is the local timer reload value. The emulated
	// timer fires on host ticks, so only its being non-zero matters.
	apicInitialCount = 0x10_0000
)

// Kernel is the ring 0 side of the machine: the interrupt descriptor
// table, its handlers, and the process-wide state they share.
type Kernel struct {
	cfg     Config
	cpu     *CPU
	mem     physMemory
	console *Console

	pics  *ChainedPics
	lapic *LocalAPIC

	frames   *lockedFrameAllocator
	mapperMu spinMutex
	mapper   *Mapper

	kbdMu    spinMutex
	keyboard *Keyboard
	input    *inputQueue
	sink     charSink

	idt       *InterruptDescriptorTable
	idtLoaded atomic.Bool

	tss     TaskStateSegment
	stack   stack
	dfStack stack

	sched Scheduler
	saved Context // written by the preemption entry before the scheduler runs

	ticks     uint64
	apicTicks uint64
}

func newKernel(cfg Config, cpu *CPU, mem *physmem) *Kernel {
	k := &Kernel{
		cfg:      cfg,
		cpu:      cpu,
		mem:      mem,
		console:  newConsole(cpu),
		pics:     NewChainedPics(cpu, cfg.PICBase, cfg.PICBase+8),
		lapic:    NewLocalAPIC(cpu),
		frames:   &lockedFrameAllocator{mu: spinMutex{name: "frames"}, fa: newFrameAllocator(lowMemoryEnd, mem.size())},
		mapperMu: spinMutex{name: "page table"},
		kbdMu:    spinMutex{name: "keyboard"},
		keyboard: NewKeyboard(MapLettersToUnicode),
		input:    newInputQueue(),
	}
	k.sink = k.input
	k.sched = newRoundRobin(k.lapic)
	return k
}

// fatal prints the reason and halts. It never returns.
func (k *Kernel) fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	k.console.Printf("%s\n", msg)
	panic(halt{msg})
}

// boot builds the address space and stacks, programs both interrupt
// controllers, loads the interrupt descriptor table and enables
// interrupts.
func (k *Kernel) boot() {
	pml4, ok := k.frames.AllocateFrame()
	if !ok {
		k.fatal("boot: no frame for the page table root")
	}
	k.mem.zeroFrame(pml4)
	k.mapper = newMapper(k.mem, pml4, k.cpu)
	k.cpu.writeCR3(pml4)

	var err error
	if k.stack, err = mapStack(k.mapper, k.frames, kernelStackBottom, kernelStackPages); err != nil {
		k.fatal("boot: kernel %v", err)
	}
	k.cpu.R[RSP] = uint64(k.stack.top)
	if k.dfStack, err = mapStack(k.mapper, k.frames, doubleFaultStackBottom, doubleFaultStackPages); err != nil {
		k.fatal("boot: double fault %v", err)
	}
	k.tss.IST[doubleFaultISTIndex] = uint64(k.dfStack.top)
	k.cpu.Ltr(&k.tss)

	k.pics.Initialize()
	k.pics.SetMasks(^uint8(1<<irqTimer|1<<irqKeyboard), 0xff)

	k.InitIDT()

	if k.cfg.APICPeriod.Duration > 0 {
		k.lapic.Enable()
		k.lapic.StartTimer(k.cfg.apicTimerVector(), apicInitialCount)
	}
	k.cpu.Sti()

	k.console.Printf("trapgate: %d KiB free, timer %#x, keyboard %#x, local timer %#x (%s)\n",
		k.frames.fa.Free()*pageSize/1024,
		uint8(k.cfg.timerVector()), uint8(k.cfg.keyboardVector()), uint8(k.cfg.apicTimerVector()),
		k.idt.Kind(k.cfg.apicTimerVector()))
}

// getChar waits for the next decoded character.
func (k *Kernel) getChar() rune {
	for {
		var r rune
		var ok bool
		k.cpu.withoutInterrupts(func() { r, ok = k.input.pop() })
		if ok {
			return r
		}
		k.cpu.Hlt()
	}
}

// lazy reports whether va may be backed on demand.
func (k *Kernel) lazy(va VirtAddr) bool {
	for _, r := range k.cfg.LazyRegions {
		if r.contains(va) {
			return true
		}
	}
	return false
}
