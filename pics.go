package main

// pic is the kernel's view of one 8259 chip.
type pic struct {
	offset  uint8
	command uint16
	data    uint16
}

func (p pic) handlesInterrupt(v Vector) bool {
	return int(v) >= int(p.offset) && int(v) < int(p.offset)+8
}

func (p pic) endOfInterrupt(cpu *CPU) {
	cpu.Out8(p.command, ocw2EOI)
}

// ChainedPics drives the cascaded 8259 pair. All port access goes
// through one lock shared by every device handler.
type ChainedPics struct {
	mu     spinMutex
	cpu    *CPU
	master pic
	slave  pic
}

// NewChainedPics returns a shim that will remap the pair so the master's
// lines start at offset1 and the slave's at offset2.
func NewChainedPics(cpu *CPU, offset1, offset2 uint8) *ChainedPics {
	return &ChainedPics{
		mu:     spinMutex{name: "pics"},
		cpu:    cpu,
		master: pic{offset: offset1, command: pic1Command, data: pic1Data},
		slave:  pic{offset: offset2, command: pic2Command, data: pic2Data},
	}
}

// Initialize runs the initialisation sequence on both chips, moving
// their vectors to the configured offsets and keeping the current masks.
func (cp *ChainedPics) Initialize() {
	cp.mu.lock()
	defer cp.mu.unlock()

	cpu := cp.cpu
	wait := func() { cpu.Out8(ioDelay, 0) }

	mask1 := cpu.In8(cp.master.data)
	mask2 := cpu.In8(cp.slave.data)

	cpu.Out8(cp.master.command, icw1Init|icw1ICW4)
	wait()
	cpu.Out8(cp.slave.command, icw1Init|icw1ICW4)
	wait()

	cpu.Out8(cp.master.data, cp.master.offset)
	wait()
	cpu.Out8(cp.slave.data, cp.slave.offset)
	wait()

	cpu.Out8(cp.master.data, 1<<irqCascade)
	wait()
	cpu.Out8(cp.slave.data, irqCascade)
	wait()

	cpu.Out8(cp.master.data, icw48086)
	wait()
	cpu.Out8(cp.slave.data, icw48086)
	wait()

	cpu.Out8(cp.master.data, mask1)
	cpu.Out8(cp.slave.data, mask2)
}

// SetMasks writes both interrupt mask registers. A set bit masks a line.
func (cp *ChainedPics) SetMasks(mask1, mask2 uint8) {
	cp.mu.lock()
	defer cp.mu.unlock()
	cp.cpu.Out8(cp.master.data, mask1)
	cp.cpu.Out8(cp.slave.data, mask2)
}

// HandlesInterrupt reports whether v belongs to either chip.
func (cp *ChainedPics) HandlesInterrupt(v Vector) bool {
	return cp.master.handlesInterrupt(v) || cp.slave.handlesInterrupt(v)
}

// NotifyEndOfInterrupt acknowledges v. Slave vectors are acknowledged on
// both chips, slave first.
func (cp *ChainedPics) NotifyEndOfInterrupt(v Vector) {
	cp.mu.lock()
	defer cp.mu.unlock()
	if !cp.HandlesInterrupt(v) {
		return
	}
	if cp.slave.handlesInterrupt(v) {
		cp.slave.endOfInterrupt(cp.cpu)
	}
	cp.master.endOfInterrupt(cp.cpu)
}
