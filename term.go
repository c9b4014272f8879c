//go:build linux || darwin

package main

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func tcget(fd uintptr) (*unix.Termios, error) {
	p, err := unix.IoctlGetTermios(int(fd), getTermios)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func tcset(fd uintptr, p *unix.Termios) error {
	return unix.IoctlSetTermios(int(fd), setTermios, p)
}

// rawTerminal puts f into raw mode so every key reaches the emulated
// keyboard, keeping output newline translation for the console.
func rawTerminal(f *os.File) (func(), error) {
	fd := f.Fd()
	old, err := term.MakeRaw(int(fd))
	if err != nil {
		return nil, err
	}
	restore := func() { term.Restore(int(fd), old) }
	t, err := tcget(fd)
	if err != nil {
		restore()
		return nil, err
	}
	t.Oflag |= unix.OPOST | unix.ONLCR
	if err := tcset(fd, t); err != nil {
		restore()
		return nil, err
	}
	return restore, nil
}
