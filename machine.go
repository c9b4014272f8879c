package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Machine is an emulated single core PC with the kernel loaded.
type Machine struct {
	cfg    Config
	mem    *physmem
	bus    *portBus
	cpu    *CPU
	kernel *Kernel
}

// NewMachine builds a powered-off machine. Console output goes to out.
func NewMachine(cfg Config, out io.Writer) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mem := newPhysmem(cfg.MemoryMiB << 20)
	bus := &portBus{pic: newDualPIC(), uart: uart{out: out}}
	cpu := newCPU(context.Background(), bus, mem)
	return &Machine{
		cfg:    cfg,
		mem:    mem,
		bus:    bus,
		cpu:    cpu,
		kernel: newKernel(cfg, cpu, mem),
	}, nil
}

// exec runs kernel code, converting a halt into a *HaltError.
func (m *Machine) exec(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case halt:
			err = &HaltError{Reason: v.reason, RIP: m.cpu.rip, RSP: m.cpu.R[RSP]}
		case fault:
			err = &HaltError{Reason: "unhandled " + v.String(), RIP: m.cpu.rip, RSP: m.cpu.R[RSP]}
		default:
			panic(r)
		}
		log.WithError(err).Info("machine halted")
	}()
	fn()
	return nil
}

// Boot runs the kernel's initialisation.
func (m *Machine) Boot() error {
	if err := m.exec(m.kernel.boot); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	log.WithField("memory_mib", m.cfg.MemoryMiB).Info("machine booted")
	return nil
}

// attach connects the host clocks and keyboard input to the devices.
func (m *Machine) attach(ctx context.Context, keys <-chan []byte) func() {
	m.cpu.ctx = ctx
	m.bus.ps2.input = keys
	var tickers []*time.Ticker
	if d := m.cfg.PITPeriod.Duration; d > 0 {
		t := time.NewTicker(d)
		m.bus.pit.ticks = t.C
		tickers = append(tickers, t)
	}
	if d := m.cfg.APICPeriod.Duration; d > 0 {
		t := time.NewTicker(d)
		m.bus.lapic.ticks = t.C
		tickers = append(tickers, t)
	}
	return func() {
		for _, t := range tickers {
			t.Stop()
		}
	}
}

// Run boots the machine and runs the shell until it exits. Cancelling
// ctx powers the machine off.
func (m *Machine) Run(ctx context.Context, keys <-chan []byte) error {
	detach := m.attach(ctx, keys)
	defer detach()
	if err := m.Boot(); err != nil {
		return err
	}
	err := m.exec(func() { newShell(m.kernel).Run("> ") })
	if errors.Is(err, ErrHalted) && ctx.Err() != nil {
		return nil
	}
	return err
}
