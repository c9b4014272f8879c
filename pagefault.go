package main

// pageFault backs a not-present page inside a lazy region with a fresh
// zeroed frame and returns so the faulting instruction runs again.
// Protection violations and faults elsewhere are fatal.
func (k *Kernel) pageFault(frame *InterruptStackFrame, code PageFaultErrorCode) {
	addr := k.cpu.readCR2()

	k.console.Printf("PAGE FAULT\nFaulting ADDR: %#x\nError Code %v\n%v\n", uint64(addr), code, frame)

	switch {
	case code&ProtectionViolation != 0:
		k.fatal("page protection violation at %#x", uint64(addr))
	case !k.lazy(addr):
		k.fatal("page fault at %#x outside demand paged regions", uint64(addr))
	}

	f, ok := k.frames.AllocateFrame()
	if !ok {
		k.fatal("no physical frame left for %#x", uint64(addr))
	}
	k.mem.zeroFrame(f)

	k.mapperMu.lock()
	flush, err := k.mapper.MapTo(pageContaining(addr), f, Present|Writable, k.frames)
	k.mapperMu.unlock()
	if err != nil {
		k.fatal("can't map %#x: %v", uint64(addr), err)
	}
	flush.Flush()
}
