package main

import (
	"fmt"
	"io"
)

// 16550 register offsets and line status bits.
const (
	uartData       = 0
	uartLineStatus = 5

	lsrTHREmpty = 1 << 5
	lsrTEmpty   = 1 << 6
)

// uart is a 16550 serial port whose transmitter writes to out.
type uart struct {
	out  io.Writer
	regs [8]uint8
}

func (u *uart) in8(reg uint16) uint8 {
	if reg == uartLineStatus {
		return lsrTHREmpty | lsrTEmpty
	}
	return u.regs[reg]
}

func (u *uart) out8(reg uint16, v uint8) {
	const dlab = 1 << 7
	if reg == uartData && u.regs[3]&dlab == 0 {
		u.writeterminal(v)
		return
	}
	u.regs[reg] = v
}

func (u *uart) writeterminal(b uint8) {
	if u.out == nil {
		return
	}
	if _, err := u.out.Write([]byte{b}); err != nil {
		log.WithError(err).Warn("uart: write failed")
	}
}

// serialPort transmits through COM1 a byte at a time.
type serialPort struct {
	cpu *CPU
}

func (s serialPort) Write(p []byte) (int, error) {
	for _, b := range p {
		for s.cpu.In8(com1+uartLineStatus)&lsrTHREmpty == 0 {
		}
		s.cpu.Out8(com1+uartData, b)
	}
	return len(p), nil
}

// Console is the kernel's diagnostic text sink. Writes are serialised and
// delivered in order.
type Console struct {
	mu   spinMutex
	cpu  *CPU
	port io.Writer
}

func newConsole(cpu *CPU) *Console {
	return &Console{mu: spinMutex{name: "console"}, cpu: cpu, port: serialPort{cpu: cpu}}
}

// Printf formats to the console with interrupts masked.
func (c *Console) Printf(format string, args ...interface{}) {
	c.cpu.withoutInterrupts(func() {
		c.mu.lock()
		defer c.mu.unlock()
		fmt.Fprintf(c.port, format, args...)
	})
}

// dump writes the full register file.
func (c *Console) dump() {
	c.cpu.withoutInterrupts(func() {
		c.mu.lock()
		defer c.mu.unlock()
		c.cpu.dumpRegisters(c.port)
	})
}
