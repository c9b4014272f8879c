package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

// newTestMachine boots a machine with no host clocks attached. Interrupts
// arrive only when a test raises them.
func newTestMachine(t *testing.T, edit func(*Config)) (*Machine, *bytes.Buffer) {
	t.Helper()
	is := is.New(t)
	cfg := DefaultConfig()
	if edit != nil {
		edit(&cfg)
	}
	var out bytes.Buffer
	m, err := NewMachine(cfg, &out)
	is.NoErr(err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	m.cpu.ctx = ctx
	is.NoErr(m.Boot())
	return m, &out
}

// haltReason returns the reason the machine halted, failing the test if
// err is not a halt.
func haltReason(t *testing.T, err error) string {
	t.Helper()
	var h *HaltError
	if !errors.As(err, &h) {
		t.Fatalf("expected machine to halt, got %v", err)
	}
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("%v does not match ErrHalted", err)
	}
	return h.Reason
}

func TestNewMachineRejectsInvalidConfig(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()
	cfg.PICBase = 0x08
	_, err := NewMachine(cfg, nil)
	is.True(errors.Is(err, errInvalidConfig))
}

func TestBootBanner(t *testing.T) {
	is := is.New(t)
	m, out := newTestMachine(t, nil)
	is.True(strings.HasPrefix(out.String(), "trapgate: "))
	is.True(strings.Contains(out.String(), "local timer 0x30 (raw)"))
	is.True(m.cpu.interruptsEnabled())
	is.True(m.kernel.stack.contains(m.cpu.R[RSP]))
}

func TestRunExitsShell(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()
	var out bytes.Buffer
	m, err := NewMachine(cfg, &out)
	is.NoErr(err)

	keys := make(chan []byte, 1)
	keys <- newTypist().scancodes([]byte("exit\r"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	is.NoErr(m.Run(ctx, keys))
	is.True(strings.Contains(out.String(), "> exit\n"))
}

func TestRunPowerOff(t *testing.T) {
	is := is.New(t)
	m, err := NewMachine(DefaultConfig(), nil)
	is.NoErr(err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	is.NoErr(m.Run(ctx, nil)) // halting after cancellation is a clean exit
}

func TestExecConvertsEscapedFault(t *testing.T) {
	is := is.New(t)
	m, _ := newTestMachine(t, nil)
	err := m.exec(func() { panic(fault{vec: GeneralProtectionFault}) })
	is.True(strings.HasPrefix(haltReason(t, err), "unhandled fault: GENERAL PROTECTION FAULT"))
}
