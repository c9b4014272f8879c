package main

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

// runShell types input on the keyboard and runs the shell until it
// returns.
func runShell(t *testing.T, input string) (*Shell, string) {
	t.Helper()
	is := is.New(t)
	m, out := newTestMachine(t, func(c *Config) {
		c.PITPeriod = duration{}
		c.APICPeriod = duration{}
	})
	out.Reset()
	m.bus.ps2.enqueue(newTypist().scancodes([]byte(input))...)
	sh := newShell(m.kernel)
	is.NoErr(m.exec(func() { sh.Run("> ") }))
	return sh, out.String()
}

func TestShellEcho(t *testing.T) {
	is := is.New(t)
	_, out := runShell(t, "echo hello   world\rexit\r")
	is.Equal(out, "> echo hello   world\nhello world\n> exit\n")
}

func TestShellHistory(t *testing.T) {
	is := is.New(t)
	_, out := runShell(t, "echo one\recho two\rhistory\rexit\r")
	is.True(strings.Contains(out, "0 echo one\n1 echo two\n2 history\n"))
}

func TestShellHistoryCapped(t *testing.T) {
	is := is.New(t)
	var input strings.Builder
	for i := 0; i < 15; i++ {
		input.WriteString("echo x\r")
	}
	input.WriteString("\x03")
	sh, _ := runShell(t, input.String())
	is.Equal(len(sh.history), historySize)
}

func TestShellEmptyLineKeptInHistory(t *testing.T) {
	is := is.New(t)
	sh, out := runShell(t, "\r  \rexit\r")
	is.Equal(out, "> \n>   \n> exit\n")
	is.Equal(sh.history, []string{"exit", "  ", ""})
}

func TestShellBackspace(t *testing.T) {
	is := is.New(t)
	_, out := runShell(t, "\x7fechp\x7fo hi\rexit\r")
	is.Equal(out, "> \aechp\b \bo hi\nhi\n> exit\n")
}

func TestShellUnknownCommand(t *testing.T) {
	is := is.New(t)
	_, out := runShell(t, "frobnicate now\rexit\r")
	is.True(strings.Contains(out, "unknown command: frobnicate\n"))
}

func TestShellCtrlC(t *testing.T) {
	is := is.New(t)
	sh, out := runShell(t, "ech\x03echo never\r")
	is.Equal(out, "> ech\n")
	is.Equal(len(sh.history), 0)
}

func TestShellInt3(t *testing.T) {
	is := is.New(t)
	_, out := runShell(t, "int3\rexit\r")
	is.True(strings.Contains(out, "EXCEPTION: BREAKPOINT"))
	is.True(strings.HasSuffix(out, "> exit\n"))
}

func TestShellTouch(t *testing.T) {
	is := is.New(t)
	_, out := runShell(t, "touch 0x5008\rtouch zz\rexit\r")
	is.True(strings.Contains(out, "PAGE FAULT\nFaulting ADDR: 0x5008"))
	is.True(strings.Contains(out, "0x5008: 0x5008\n"))
	is.True(strings.Contains(out, "touch: strconv.ParseUint"))
}

func TestParseCommand(t *testing.T) {
	is := is.New(t)
	args, err := parseCommand("  echo  a b ")
	is.NoErr(err)
	is.Equal(args, []string{"echo", "a", "b"})
	_, err = parseCommand(" \t ")
	is.Equal(err, errEmptyCommand)
}
