package main

import (
	"errors"
	"strconv"
	"strings"
)

const historySize = 10

var (
	errEmptyCommand   = errors.New("empty command")
	errUnknownCommand = errors.New("unknown command")
)

// Shell is a line editor and command loop reading from the keyboard.
type Shell struct {
	k       *Kernel
	history []string // most recent first
}

func newShell(k *Kernel) *Shell {
	return &Shell{k: k}
}

// Run reads and executes lines until exit or Ctrl-C.
func (s *Shell) Run(prefix string) {
	for {
		line, ok := s.readLine(prefix)
		if !ok {
			return
		}
		s.remember(line)
		args, err := parseCommand(line)
		if err != nil {
			continue
		}
		exit, err := s.execute(args)
		if errors.Is(err, errUnknownCommand) {
			s.k.console.Printf("unknown command: %s\n", args[0])
		}
		if exit {
			return
		}
	}
}

// readLine echoes input until a newline. It reports false on Ctrl-C.
func (s *Shell) readLine(prefix string) (string, bool) {
	con := s.k.console
	con.Printf("%s", prefix)
	var line []byte
	for {
		switch c := s.k.getChar(); {
		case c == '\r' || c == '\n':
			con.Printf("\n")
			return string(line), true
		case c == 3:
			con.Printf("\n")
			return "", false
		case c >= 32 && c <= 126:
			line = append(line, byte(c))
			con.Printf("%c", c)
		case c == 8 || c == 127:
			if len(line) == 0 {
				con.Printf("\a")
				continue
			}
			line = line[:len(line)-1]
			con.Printf("\b \b")
		default:
			con.Printf("\a")
		}
	}
}

func (s *Shell) remember(line string) {
	s.history = append([]string{line}, s.history...)
	if len(s.history) > historySize {
		s.history = s.history[:historySize]
	}
}

func parseCommand(line string) ([]string, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil, errEmptyCommand
	}
	return args, nil
}

func (s *Shell) execute(args []string) (bool, error) {
	con := s.k.console
	switch args[0] {
	case "echo":
		con.Printf("%s\n", strings.Join(args[1:], " "))
	case "history":
		for i := len(s.history) - 1; i >= 0; i-- {
			con.Printf("%d %s\n", len(s.history)-1-i, s.history[i])
		}
	case "int3":
		s.k.cpu.Int3()
	case "touch":
		if len(args) != 2 {
			con.Printf("usage: touch <addr>\n")
			return false, nil
		}
		addr, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			con.Printf("touch: %v\n", err)
			return false, nil
		}
		va := VirtAddr(addr) &^ 7
		s.k.cpu.Store64(va, addr)
		con.Printf("%#x: %#x\n", uint64(va), s.k.cpu.Load64(va))
	case "help":
		con.Printf("echo <args>, history, int3, touch <addr>, exit\n")
	case "exit":
		return true, nil
	default:
		return false, errUnknownCommand
	}
	return false, nil
}
