package main

import (
	"github.com/sirupsen/logrus"
)

// Legacy controller lines.
const (
	irqTimer    = 0
	irqKeyboard = 1
	irqCascade  = 2
)

// 8259 command bits.
const (
	icw1Init = 0x10
	icw1ICW4 = 0x01
	icw1Sngl = 0x02
	icw48086 = 0x01

	ocw3Select  = 0x08
	ocw3ReadReg = 0x02
	ocw3ReadISR = 0x01

	ocw2EOI         = 0x20
	ocw2SpecificEOI = 0x60
)

// i8259 is one programmable interrupt controller chip.
type i8259 struct {
	name   string
	offset uint8

	irr, isr, imr uint8

	icw     int // next initialisation word expected, zero when operational
	needsW4 bool
	single  bool
	readISR bool

	eois [8]int // end of interrupt commands received per line
}

func (p *i8259) in8(reg uint16) uint8 {
	if reg == 0 {
		if p.readISR {
			return p.isr
		}
		return p.irr
	}
	return p.imr
}

func (p *i8259) out8(reg uint16, v uint8) {
	if reg == 0 {
		p.command(v)
		return
	}
	switch p.icw {
	case 2:
		p.offset = v &^ 7
		switch {
		case p.single && p.needsW4:
			p.icw = 4
		case p.single:
			p.icw = 0
		default:
			p.icw = 3
		}
	case 3:
		if p.needsW4 {
			p.icw = 4
		} else {
			p.icw = 0
		}
	case 4:
		if v&icw48086 == 0 {
			log.WithFields(logrus.Fields{"pic": p.name, "icw4": hex16(uint16(v))}).Warn("i8259: MCS-80 mode not supported")
		}
		p.icw = 0
	default:
		p.imr = v
	}
}

func (p *i8259) command(v uint8) {
	switch {
	case v&icw1Init != 0:
		p.icw = 2
		p.needsW4 = v&icw1ICW4 != 0
		p.single = v&icw1Sngl != 0
		p.irr, p.isr, p.imr = 0, 0, 0
		p.readISR = false
	case v&0x18 == ocw3Select:
		if v&ocw3ReadReg != 0 {
			p.readISR = v&ocw3ReadISR != 0
		}
	case v&0xe0 == ocw2SpecificEOI:
		p.eoi(int(v & 7))
	case v&0xe0 == ocw2EOI:
		if line, ok := p.inService(); ok {
			p.eoi(line)
		} else {
			log.WithField("pic", p.name).Warn("i8259: end of interrupt with nothing in service")
		}
	default:
		log.WithFields(logrus.Fields{"pic": p.name, "ocw2": hex16(uint16(v))}).Warn("i8259: unsupported command")
	}
}

func (p *i8259) eoi(line int) {
	p.isr &^= 1 << line
	p.eois[line]++
}

// inService returns the highest priority line being serviced.
func (p *i8259) inService() (int, bool) {
	for i := 0; i < 8; i++ {
		if p.isr&(1<<i) != 0 {
			return i, true
		}
	}
	return 0, false
}

// highest returns the highest priority unmasked request that is not
// blocked by a line of equal or higher priority in service.
func (p *i8259) highest() (int, bool) {
	pending := p.irr &^ p.imr
	for i := 0; i < 8; i++ {
		if p.isr&(1<<i) != 0 {
			return 0, false
		}
		if pending&(1<<i) != 0 {
			return i, true
		}
	}
	return 0, false
}

func (p *i8259) accept(line int) {
	p.irr &^= 1 << line
	p.isr |= 1 << line
}

// dualPIC is the master/slave pair cascaded through master line 2.
type dualPIC struct {
	master, slave i8259
}

// newDualPIC returns the pair in its power-on state, which overlaps the
// CPU exception vectors until remapped.
func newDualPIC() dualPIC {
	return dualPIC{
		master: i8259{name: "master", offset: 0x08},
		slave:  i8259{name: "slave", offset: 0x70},
	}
}

// raise requests service on line irq (0-15).
func (d *dualPIC) raise(irq int) {
	if irq < 8 {
		d.master.irr |= 1 << irq
		return
	}
	d.slave.irr |= 1 << (irq - 8)
}

func (d *dualPIC) cascade() {
	if _, ok := d.slave.highest(); ok {
		d.master.irr |= 1 << irqCascade
	} else {
		d.master.irr &^= 1 << irqCascade
	}
}

// acknowledge performs the interrupt acknowledge cycle, returning the
// vector of the highest priority request.
func (d *dualPIC) acknowledge() (Vector, bool) {
	d.cascade()
	line, ok := d.master.highest()
	if !ok {
		return 0, false
	}
	d.master.accept(line)
	if line != irqCascade {
		return Vector(d.master.offset + uint8(line)), true
	}
	sl, ok := d.slave.highest()
	if !ok {
		return 0, false
	}
	d.slave.accept(sl)
	return Vector(d.slave.offset + uint8(sl)), true
}

// inService reports whether irq is being serviced.
func (d *dualPIC) inService(irq int) bool {
	if irq < 8 {
		return d.master.isr&(1<<irq) != 0
	}
	return d.slave.isr&(1<<(irq-8)) != 0
}

// eoiCount returns the end of interrupt commands received for irq.
func (d *dualPIC) eoiCount(irq int) int {
	if irq < 8 {
		return d.master.eois[irq]
	}
	return d.slave.eois[irq-8]
}
