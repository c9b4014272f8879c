package main

// Context is the complete register state of an interrupted task.
type Context struct {
	Regs   [16]uint64 // Regs[RSP] is the interrupted stack pointer
	RIP    uint64
	CS     uint64
	RFlags uint64
	SS     uint64
}

// saveContext is bound by address to the local timer vector. On entry
// only the CPU's return frame is on the stack and every general purpose
// register still holds the interrupted task's value. It records them all
// in k.saved before anything else runs, hands that to the scheduler, and
// resumes whatever context the scheduler returns.
func (k *Kernel) saveContext(c *CPU) {
	f := c.returnFrame()
	k.saved.Regs = c.R
	k.saved.Regs[RSP] = f.StackPointer
	k.saved.RIP = f.InstructionPointer
	k.saved.CS = f.CodeSegment
	k.saved.RFlags = f.CPUFlags
	k.saved.SS = f.StackSegment

	next := k.sched.SaveContext(&k.saved)

	sp := c.R[RSP]
	c.R = next.Regs
	c.R[RSP] = sp
	c.setReturnFrame(InterruptStackFrame{
		InstructionPointer: next.RIP,
		CodeSegment:        next.CS,
		CPUFlags:           next.RFlags,
		StackPointer:       next.Regs[RSP],
		StackSegment:       next.SS,
	})
	c.iretq()
}
