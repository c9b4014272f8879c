//go:build !linux && !darwin

package main

import (
	"os"

	"golang.org/x/term"
)

func rawTerminal(f *os.File) (func(), error) {
	fd := int(f.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { term.Restore(fd, old) }, nil
}
