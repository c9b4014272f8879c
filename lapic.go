package main

import (
	"math/bits"
	"time"

	"github.com/sirupsen/logrus"
)

// Local APIC register offsets.
const (
	lapicID           = 0x020
	lapicTPR          = 0x080
	lapicEOI          = 0x0b0
	lapicSVR          = 0x0f0
	lapicISR          = 0x100
	lapicIRR          = 0x200
	lapicLVTTimer     = 0x320
	lapicInitialCount = 0x380
	lapicCurrentCount = 0x390
	lapicDivide       = 0x3e0
)

const (
	svrEnable      = 1 << 8
	lvtMasked      = 1 << 16
	lvtTimerPeriod = 1 << 17
)

// lapic is the per-core advanced interrupt controller. Only its timer is
// wired. It keeps its own request and in-service state, independent of
// the 8259 pair.
type lapic struct {
	ticks <-chan time.Time

	svr, tpr, lvtTimer, initial, current, divide uint32

	irr, isr [8]uint32
	eois     int
}

func (a *lapic) read32(off uint32) uint32 {
	switch {
	case off == lapicID:
		return 0
	case off == lapicTPR:
		return a.tpr
	case off == lapicSVR:
		return a.svr
	case off >= lapicISR && off < lapicISR+0x80 && off%0x10 == 0:
		return a.isr[(off-lapicISR)/0x10]
	case off >= lapicIRR && off < lapicIRR+0x80 && off%0x10 == 0:
		return a.irr[(off-lapicIRR)/0x10]
	case off == lapicLVTTimer:
		return a.lvtTimer
	case off == lapicInitialCount:
		return a.initial
	case off == lapicCurrentCount:
		return a.current
	case off == lapicDivide:
		return a.divide
	}
	log.WithField("offset", hex64(uint64(off))).Warn("lapic: read from unimplemented register")
	return 0
}

func (a *lapic) write32(off uint32, v uint32) {
	switch off {
	case lapicTPR:
		a.tpr = v & 0xff
	case lapicEOI:
		if vec, ok := highestBit(a.isr); ok {
			a.isr[vec/32] &^= 1 << (vec % 32)
			a.eois++
		} else {
			log.Warn("lapic: end of interrupt with nothing in service")
		}
	case lapicSVR:
		a.svr = v
	case lapicLVTTimer:
		a.lvtTimer = v
	case lapicInitialCount:
		a.initial = v
		a.current = v
	case lapicDivide:
		a.divide = v
	default:
		log.WithFields(logrus.Fields{"offset": hex64(uint64(off)), "value": hex64(uint64(v))}).Warn("lapic: write to unimplemented register")
	}
}

func (a *lapic) tick() {
	select {
	case <-a.ticks:
		a.fire()
	default:
	}
}

// fire expires the timer, requesting its LVT vector if armed.
func (a *lapic) fire() {
	if a.svr&svrEnable == 0 || a.lvtTimer&lvtMasked != 0 || a.initial == 0 {
		return
	}
	v := a.lvtTimer & 0xff
	a.irr[v/32] |= 1 << (v % 32)
	if a.lvtTimer&lvtTimerPeriod == 0 {
		a.initial = 0
	}
	a.current = a.initial
}

// acknowledge moves the highest requested vector to in-service if it
// outranks everything already in service.
func (a *lapic) acknowledge() (Vector, bool) {
	req, ok := highestBit(a.irr)
	if !ok {
		return 0, false
	}
	if cur, ok := highestBit(a.isr); ok && cur>>4 >= req>>4 {
		return 0, false
	}
	a.irr[req/32] &^= 1 << (req % 32)
	a.isr[req/32] |= 1 << (req % 32)
	return Vector(req), true
}

// inService reports whether v awaits an end of interrupt.
func (a *lapic) inService(v Vector) bool {
	return a.isr[v/32]&(1<<(v%32)) != 0
}

func highestBit(set [8]uint32) (uint32, bool) {
	for i := len(set) - 1; i >= 0; i-- {
		if set[i] != 0 {
			return uint32(i*32 + 31 - bits.LeadingZeros32(set[i])), true
		}
	}
	return 0, false
}
