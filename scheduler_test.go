package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
)

func TestSaveContextCapturesRegisters(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	c := m.cpu
	for r := range c.R {
		if r != RSP {
			c.R[r] = uint64(0x1000 + r)
		}
	}
	regs, rsp := c.R, c.R[RSP]

	m.bus.lapic.fire()
	is.NoErr(m.exec(c.Hlt))

	k := m.kernel
	want := Context{
		Regs:   regs,
		RIP:    c.rip,
		CS:     kernelCS,
		RFlags: flagReserved | flagIF,
		SS:     kernelSS,
	}
	if diff := cmp.Diff(want, k.saved); diff != "" {
		t.Errorf("saved context (-want +got):\n%s", diff)
	}
	is.Equal(c.R, regs) // a single task resumes itself
	is.Equal(c.R[RSP], rsp)
	is.Equal(k.sched.(*roundRobin).switches, 1)
	is.Equal(m.bus.lapic.eois, 1)
	is.True(!m.bus.lapic.inService(0x30))
	is.Equal(c.depth, 0)
}

func TestRoundRobinSwitchesTasks(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	c, k := m.cpu, m.kernel
	rr := k.sched.(*roundRobin)

	var other Context
	other.Regs[RAX] = 7
	other.Regs[RSP] = uint64(k.stack.top) - 0x800
	other.RIP = 0x0020_0000
	other.CS, other.SS = kernelCS, kernelSS
	other.RFlags = flagReserved | flagIF
	is.Equal(rr.spawn(other), 1)

	c.R[RAX] = 1
	bootRIP, bootRSP := c.rip, c.R[RSP]

	m.bus.lapic.fire()
	is.NoErr(m.exec(c.Hlt))
	is.Equal(rr.current, 1)
	is.Equal(c.R[RAX], uint64(7))
	is.Equal(c.rip, uint64(0x0020_0000))
	is.Equal(c.R[RSP], other.Regs[RSP])
	is.True(c.interruptsEnabled())

	m.bus.lapic.fire()
	is.NoErr(m.exec(c.Hlt))
	is.Equal(rr.current, 0)
	is.Equal(c.R[RAX], uint64(1))
	is.Equal(c.rip, bootRIP)
	is.Equal(c.R[RSP], bootRSP)
	is.Equal(rr.tasks[1].ctx.Regs[RAX], uint64(7))
	is.Equal(rr.switches, 2)
	is.Equal(m.bus.lapic.eois, 2)
}

func TestPreemptionLeavesPICAlone(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	m.bus.lapic.fire()
	is.NoErr(m.exec(m.cpu.Hlt))
	is.Equal(m.bus.pic.eoiCount(irqTimer), 0)
	is.Equal(m.kernel.ticks, uint64(0))
}
