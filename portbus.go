package main

import (
	"context"

	"github.com/sirupsen/logrus"
)

// I/O port assignments.
const (
	pic1Command = 0x20
	pic1Data    = 0x21
	pic2Command = 0xa0
	pic2Data    = 0xa1

	pitChannel0 = 0x40
	pitCommand  = 0x43

	ps2Data   = 0x60
	ps2Status = 0x64

	ioDelay = 0x80

	com1 = 0x3f8

	lapicBase PhysAddr = 0xfee0_0000
)

// portBus routes port and memory mapped I/O to devices.
type portBus struct {
	pic   dualPIC
	pit   i8254
	ps2   i8042
	lapic lapic
	uart  uart
}

// in8 reads a byte from port.
func (b *portBus) in8(port uint16) uint8 {
	switch port {
	case pic1Command, pic1Data:
		return b.pic.master.in8(port - pic1Command)
	case pic2Command, pic2Data:
		return b.pic.slave.in8(port - pic2Command)
	case ps2Data, ps2Status:
		return b.ps2.in8(port)
	}
	if port >= com1 && port < com1+8 {
		return b.uart.in8(port - com1)
	}
	log.WithFields(logrus.Fields{"port": hex16(port)}).Warn("portbus: read from unmapped port")
	return 0xff
}

// out8 writes v to port.
func (b *portBus) out8(port uint16, v uint8) {
	switch port {
	case pic1Command, pic1Data:
		b.pic.master.out8(port-pic1Command, v)
		return
	case pic2Command, pic2Data:
		b.pic.slave.out8(port-pic2Command, v)
		return
	case pitChannel0, pitChannel0 + 1, pitChannel0 + 2, pitCommand:
		b.pit.out8(port, v)
		return
	case ps2Data, ps2Status:
		b.ps2.out8(port, v)
		return
	case ioDelay:
		return
	}
	if port >= com1 && port < com1+8 {
		b.uart.out8(port-com1, v)
		return
	}
	log.WithFields(logrus.Fields{"port": hex16(port), "value": hex16(uint16(v))}).Warn("portbus: write to unmapped port")
}

// read32 reads a memory mapped device register.
func (b *portBus) read32(pa PhysAddr) uint32 {
	if pa >= lapicBase && pa < lapicBase+pageSize {
		return b.lapic.read32(uint32(pa - lapicBase))
	}
	panic(halt{"machine check: no device at " + hex64(uint64(pa))})
}

// write32 writes a memory mapped device register.
func (b *portBus) write32(pa PhysAddr, v uint32) {
	if pa >= lapicBase && pa < lapicBase+pageSize {
		b.lapic.write32(uint32(pa-lapicBase), v)
		return
	}
	panic(halt{"machine check: no device at " + hex64(uint64(pa))})
}

// poll moves host events that have already arrived into the devices.
func (b *portBus) poll() {
	b.pit.tick(&b.pic)
	b.lapic.tick()
	b.ps2.poll(&b.pic)
}

// wait blocks until a host event arrives or ctx is done.
func (b *portBus) wait(ctx context.Context) {
	select {
	case <-b.pit.ticks:
		b.pit.fire(&b.pic)
	case <-b.lapic.ticks:
		b.lapic.fire()
	case codes := <-b.ps2.input:
		b.ps2.enqueue(codes...)
		b.ps2.poll(&b.pic)
	case <-ctx.Done():
		panic(halt{"power off: " + ctx.Err().Error()})
	}
}

// acknowledge takes the highest priority pending interrupt, local APIC
// first.
func (b *portBus) acknowledge() (Vector, bool) {
	if v, ok := b.lapic.acknowledge(); ok {
		return v, true
	}
	return b.pic.acknowledge()
}
