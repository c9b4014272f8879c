package main

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestPageFaultMapsLazyPage(t *testing.T) {
	is := is.New(t)
	m, out := newTestMachine(t, nil)
	k := m.kernel

	want, ok := k.frames.fa.free.Min()
	is.True(ok)
	rip := m.cpu.rip

	var got uint64
	is.NoErr(m.exec(func() {
		m.cpu.Store64(0x2000, 0xdeadbeef)
		got = m.cpu.Load64(0x2000)
	}))
	is.Equal(got, uint64(0xdeadbeef))
	is.Equal(m.cpu.rip, rip+8) // both instructions completed once

	frame, flags, ok := k.mapper.Translate(pageContaining(0x2000))
	is.True(ok)
	is.Equal(frame, want)
	is.Equal(flags, Present|Writable)
	is.Equal(strings.Count(out.String(), "PAGE FAULT"), 1)
	is.True(strings.Contains(out.String(), "Faulting ADDR: 0x2000"))
	is.True(strings.Contains(out.String(), "Error Code CAUSED_BY_WRITE"))
}

func TestPageFaultZeroesFrame(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	f, ok := m.kernel.frames.fa.free.Min()
	is.True(ok)
	m.mem.write64(f.Start+16, 0x5555) // stale data from a previous owner

	var got uint64
	is.NoErr(m.exec(func() { got = m.cpu.Load64(0x7000 + 16) }))
	is.Equal(got, uint64(0))
}

func TestPageFaultFrameExhaustion(t *testing.T) {
	is := is.New(t)
	m, out := newTestMachine(t, nil)
	k := m.kernel
	for {
		if _, ok := k.frames.AllocateFrame(); !ok {
			break
		}
	}

	err := m.exec(func() { m.cpu.Store64(0x2000, 1) })
	is.Equal(haltReason(t, err), "no physical frame left for 0x2000")
	is.True(strings.Contains(out.String(), "no physical frame left"))
	_, _, ok := k.mapper.Translate(pageContaining(0x2000))
	is.True(!ok)
}

func TestPageFaultOutsideLazyRegion(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, func(c *Config) {
		c.LazyRegions = []Region{{Start: 0x1000, End: 0x10000}}
	})
	err := m.exec(func() { m.cpu.Load64(0x20000) })
	is.Equal(haltReason(t, err), "page fault at 0x20000 outside demand paged regions")
	_, _, ok := m.kernel.mapper.Translate(pageContaining(0x20000))
	is.True(!ok)
}

func TestPageFaultNullPageIsFatal(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	err := m.exec(func() { m.cpu.Load64(0x10) })
	is.Equal(haltReason(t, err), "page fault at 0x10 outside demand paged regions")
}

func TestPageFaultProtectionViolation(t *testing.T) {
	is := is.New(t)
	m, out := newTestMachine(t, nil)
	k := m.kernel
	f, ok := k.frames.AllocateFrame()
	is.True(ok)
	flush, err := k.mapper.MapTo(pageContaining(0x3000), f, Present, k.frames)
	is.NoErr(err)
	flush.Flush()

	err = m.exec(func() { m.cpu.Load64(0x3000) })
	is.NoErr(err) // reads are allowed

	err = m.exec(func() { m.cpu.Store64(0x3000, 1) })
	is.Equal(haltReason(t, err), "page protection violation at 0x3000")
	is.True(strings.Contains(out.String(), "PROTECTION_VIOLATION | CAUSED_BY_WRITE"))
}

func TestRefaultLimit(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	var calls int
	idt := new(InterruptDescriptorTable)
	idt.SetPageFaultHandler(func(*InterruptStackFrame, PageFaultErrorCode) { calls++ })
	m.cpu.Lidt(idt)

	err := m.exec(func() { m.cpu.Load64(0x5000) })
	is.True(strings.Contains(haltReason(t, err), "faulted"))
	is.Equal(calls, maxRefaults+1)
}

func TestPageFaultFlushesTLB(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	before := m.cpu.tlbFlushes
	is.NoErr(m.exec(func() { m.cpu.Store64(0x9000, 1) }))
	is.Equal(m.cpu.tlbFlushes, before+1)
}
