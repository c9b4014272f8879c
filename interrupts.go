package main

// InitIDT builds the interrupt descriptor table, installs every handler
// and loads it. It must run before interrupts are enabled, and only once.
func (k *Kernel) InitIDT() {
	if !k.idtLoaded.CompareAndSwap(false, true) {
		k.fatal("interrupt descriptor table already loaded")
	}

	idt := new(InterruptDescriptorTable)
	idt.SetHandler(Breakpoint, k.breakpoint)
	idt.SetHandlerWithErrCode(SegmentNotPresent, k.segmentNotPresent)
	idt.SetHandlerWithErrCode(GeneralProtectionFault, k.generalProtectionFault)
	idt.SetDivergingHandler(DoubleFault, k.doubleFault).SetStackIndex(doubleFaultISTIndex)
	idt.SetPageFaultHandler(k.pageFault)
	idt.SetHandler(k.cfg.timerVector(), k.timerInterrupt)
	idt.SetHandler(k.cfg.keyboardVector(), k.keyboardInterrupt)
	if k.cfg.Preempt {
		idt.SetRawEntry(k.cfg.apicTimerVector(), k.saveContext)
	} else {
		idt.SetHandler(k.cfg.apicTimerVector(), k.apicTimer)
	}

	if err := idt.validate(); err != nil {
		k.fatal("%v", err)
	}
	k.idt = idt
	k.cpu.Lidt(idt)
}

func (k *Kernel) breakpoint(frame *InterruptStackFrame) {
	k.console.Printf("EXCEPTION: BREAKPOINT\n%v\n", frame)
}

func (k *Kernel) generalProtectionFault(frame *InterruptStackFrame, code uint64) {
	k.console.Printf("EXCEPTION: GENERAL PROTECTION FAULT\nerror code: %#x\n%v\n", code, frame)
	k.console.dump()
	k.fatal("general protection fault, error code %#x", code)
}

// segmentNotPresent reports vectors that reach an unused slot. The CPU
// sets bit 1 of the error code when it refers to the table.
func (k *Kernel) segmentNotPresent(frame *InterruptStackFrame, code uint64) {
	if code&2 != 0 {
		v := Vector(code >> 3)
		k.console.Printf("EXCEPTION: NO HANDLER FOR %v (%#02x), external: %t\n%v\n", v, uint8(v), code&1 != 0, frame)
		k.fatal("unhandled vector %#02x", uint8(v))
	}
	k.console.Printf("EXCEPTION: SEGMENT NOT PRESENT\nerror code: %#x\n%v\n", code, frame)
	k.fatal("segment not present, error code %#x", code)
}

// doubleFault runs on its own interrupt stack.
func (k *Kernel) doubleFault(frame *InterruptStackFrame, _ uint64) {
	k.console.Printf("EXCEPTION: DOUBLE FAULT\nstack pointer: %#x\n%v\n", k.cpu.stackPointer(), frame)
	k.fatal("double fault")
}

func (k *Kernel) timerInterrupt(*InterruptStackFrame) {
	k.ticks++
	k.pics.NotifyEndOfInterrupt(k.cfg.timerVector())
}

func (k *Kernel) keyboardInterrupt(*InterruptStackFrame) {
	scancode := k.cpu.In8(ps2Data)
	if r, ok := k.decode(scancode); ok {
		k.sink.PutChar(r)
	}
	k.pics.NotifyEndOfInterrupt(k.cfg.keyboardVector())
}

// decode feeds one scancode to the shared decoder.
func (k *Kernel) decode(scancode byte) (rune, bool) {
	k.kbdMu.lock()
	defer k.kbdMu.unlock()
	ev, ok, err := k.keyboard.AddByte(scancode)
	if err != nil || !ok {
		return 0, false
	}
	key, ok := k.keyboard.ProcessKeyEvent(ev)
	if !ok || key.Raw {
		return 0, false
	}
	return key.Rune, true
}

// apicTimer is the framed local timer handler used when preemption is
// off.
func (k *Kernel) apicTimer(*InterruptStackFrame) {
	k.apicTicks++
	k.lapic.EndOfInterrupt()
}
