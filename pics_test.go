package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
)

func TestChainedPicsRemap(t *testing.T) {
	tests := []struct {
		base                      uint8
		masterOffset, slaveOffset uint8
	}{
		{0x20, 0x20, 0x28},
		{0x40, 0x40, 0x48},
		{0xe0, 0xe0, 0xe8},
		{0xf0, 0xf0, 0xf8},
	}
	for _, tt := range tests {
		is := is.New(t)
		m, _ := newTestMachine(t, func(c *Config) {
			c.PICBase = tt.base
			if c.APICTimerVector >= tt.base && c.APICTimerVector < tt.base+16 {
				c.APICTimerVector = 0x30
			}
		})
		pic := &m.bus.pic
		is.Equal(pic.master.offset, tt.masterOffset)
		is.Equal(pic.slave.offset, tt.slaveOffset)
		is.Equal(pic.master.icw, 0) // initialisation complete
		is.Equal(pic.slave.icw, 0)
		is.Equal(pic.master.imr, uint8(0xfc)) // timer and keyboard only
		is.Equal(pic.slave.imr, uint8(0xff))
	}
}

func TestTimerInterrupt(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	m.bus.pit.fire(&m.bus.pic)
	is.NoErr(m.exec(m.cpu.Hlt))
	is.Equal(m.kernel.ticks, uint64(1))
	is.Equal(m.bus.pic.eoiCount(irqTimer), 1)
	is.True(!m.bus.pic.inService(irqTimer))
}

func TestTimerMaskedWithInterruptsDisabled(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	m.bus.pit.fire(&m.bus.pic)
	m.cpu.withoutInterrupts(func() {
		is.NoErr(m.exec(func() { m.cpu.Store64(0x2000, 1) }))
		is.Equal(m.kernel.ticks, uint64(0))
	})
	is.NoErr(m.exec(func() { m.cpu.Load64(0x2000) }))
	is.Equal(m.kernel.ticks, uint64(1))
}

func TestPriorityBlocksLowerLines(t *testing.T) {
	is := is.New(t)
	d := newDualPIC()
	d.master.offset, d.slave.offset = 0x20, 0x28
	d.raise(irqKeyboard)
	d.raise(irqTimer)

	v, ok := d.acknowledge()
	is.True(ok)
	is.Equal(v, Vector(0x20))
	_, ok = d.acknowledge()
	is.True(!ok) // keyboard waits for the timer's end of interrupt

	d.master.command(ocw2EOI)
	v, ok = d.acknowledge()
	is.True(ok)
	is.Equal(v, Vector(0x21))
}

func TestSlaveAcknowledge(t *testing.T) {
	is := is.New(t)
	d := newDualPIC()
	d.master.offset, d.slave.offset = 0x20, 0x28
	d.raise(12)
	v, ok := d.acknowledge()
	is.True(ok)
	is.Equal(v, Vector(0x2c))
	is.True(d.inService(12))
	is.True(d.master.isr&(1<<irqCascade) != 0)
}

func TestNotifyEndOfInterrupt(t *testing.T) {
	tests := []struct {
		name       string
		v          Vector
		isr1, isr2 uint8
		eoi1, eoi2 [8]int
	}{
		{"master", 0x21, 1 << irqKeyboard, 0, [8]int{irqKeyboard: 1}, [8]int{}},
		{"slave", 0x2b, 1 << irqCascade, 1 << 3, [8]int{irqCascade: 1}, [8]int{3: 1}},
		{"not a pic vector", 0x30, 1 << irqKeyboard, 0, [8]int{}, [8]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMachine(t, nil)
			pic := &m.bus.pic
			pic.master.isr, pic.slave.isr = tt.isr1, tt.isr2
			m.kernel.pics.NotifyEndOfInterrupt(tt.v)
			if diff := cmp.Diff(tt.eoi1, pic.master.eois); diff != "" {
				t.Errorf("master (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.eoi2, pic.slave.eois); diff != "" {
				t.Errorf("slave (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotifyEndOfInterruptTopOfRange(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, func(c *Config) { c.PICBase = 0xf0 })
	pic := &m.bus.pic
	is.Equal(pic.slave.offset, uint8(0xf8))
	is.True(m.kernel.pics.HandlesInterrupt(0xff))
	is.True(!m.kernel.pics.HandlesInterrupt(0xef))

	pic.master.isr, pic.slave.isr = 1<<irqCascade, 1<<3
	m.kernel.pics.NotifyEndOfInterrupt(0xfb)
	is.Equal(pic.eoiCount(11), 1)
	is.Equal(pic.master.eois[irqCascade], 1)
}

// orderSink records, for each character, whether the keyboard line was
// still in service when the character was delivered.
type orderSink struct {
	pic       *dualPIC
	got       []rune
	inService []bool
}

func (s *orderSink) PutChar(r rune) {
	s.got = append(s.got, r)
	s.inService = append(s.inService, s.pic.inService(irqKeyboard))
}

func TestKeyboardInterrupt(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	sink := &orderSink{pic: &m.bus.pic}
	m.kernel.sink = sink

	m.bus.ps2.enqueue(0x1e)
	is.NoErr(m.exec(m.cpu.Hlt))

	is.Equal(sink.got, []rune{'a'})
	is.Equal(sink.inService, []bool{true}) // end of interrupt comes last
	is.Equal(m.bus.pic.eoiCount(irqKeyboard), 1)
	is.True(!m.bus.pic.inService(irqKeyboard))
	is.Equal(m.bus.ps2.reads, 1)
}

func TestKeyboardInterruptSequences(t *testing.T) {
	tests := []struct {
		name  string
		codes []byte
		want  []rune
	}{
		{"press and release", []byte{0x1e, 0x9e}, []rune{'a'}},
		{"shifted", []byte{0x2a, 0x1e, 0x9e, 0xaa, 0x1e}, []rune{'A', 'a'}},
		{"control", []byte{0x1d, 0x2e, 0xae, 0x9d}, []rune{3}},
		{"enter", []byte{0x1c, 0x9c}, []rune{'\n'}},
		{"extended cursor key", []byte{0xe0, 0x48, 0xe0, 0xc8}, nil},
		{"unknown scancode", []byte{0x7f, 0x1e}, []rune{'a'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			m, _ := newTestMachine(t, nil)
			sink := &orderSink{pic: &m.bus.pic}
			m.kernel.sink = sink

			m.bus.ps2.enqueue(tt.codes...)
			for range tt.codes {
				is.NoErr(m.exec(m.cpu.Hlt))
			}
			is.Equal(sink.got, tt.want)
			is.Equal(m.bus.pic.eoiCount(irqKeyboard), len(tt.codes))
		})
	}
}

func TestKeyboardFillsInputQueue(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	m.bus.ps2.enqueue(newTypist().scancodes([]byte("hi"))...)
	var got []rune
	is.NoErr(m.exec(func() {
		got = append(got, m.kernel.getChar(), m.kernel.getChar())
	}))
	is.Equal(got, []rune{'h', 'i'})
}

func TestLocalTimerWithoutPreemption(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, func(c *Config) { c.Preempt = false })
	m.bus.lapic.fire()
	is.NoErr(m.exec(m.cpu.Hlt))
	is.Equal(m.kernel.apicTicks, uint64(1))
	is.Equal(m.bus.lapic.eois, 1)
	is.True(!m.bus.lapic.inService(0x30))
	is.Equal(m.bus.pic.eoiCount(irqTimer), 0) // the 8259 pair is untouched
}

func TestLocalTimerDisabled(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, func(c *Config) { c.APICPeriod = duration{} })
	m.bus.lapic.fire()
	_, ok := m.bus.lapic.acknowledge()
	is.True(!ok)
}

func TestLocalAPICOutranksPIC(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, func(c *Config) { c.Preempt = false })
	m.bus.pit.fire(&m.bus.pic)
	m.bus.lapic.fire()
	v, ok := m.bus.acknowledge()
	is.True(ok)
	is.Equal(v, Vector(0x30))
}
