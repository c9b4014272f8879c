// trapgate boots an emulated x86-64 machine into a small interrupt
// driven kernel.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"
)

func main() {
	var cli struct {
		Run     runCmd     `cmd:"" default:"1" help:"boot the kernel and attach the terminal"`
		Vectors vectorsCmd `cmd:"" help:"print the interrupt descriptor table the kernel installs"`
	}

	ctx := kong.Parse(&cli)
	err := ctx.Run(&kong.Context{})
	ctx.FatalIfErrorf(err)
}

type runCmd struct {
	Config    string `name:"config" type:"existingfile" help:"path to a TOML machine description"`
	LogLevel  string `name:"log-level" default:"warn" help:"host log level"`
	Memory    int    `name:"memory" help:"physical memory in MiB, overrides the config"`
	NoPreempt bool   `name:"no-preempt" help:"bind the local timer to a framed handler"`
}

// machineConfig loads path over the defaults and applies the command
// line overrides.
func machineConfig(path, level string, memory int, noPreempt bool) (Config, error) {
	if err := setLogLevel(level); err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return Config{}, err
		}
	}
	if memory != 0 {
		cfg.MemoryMiB = memory
	}
	if noPreempt {
		cfg.Preempt = false
	}
	return cfg, nil
}

func (r *runCmd) Run(*kong.Context) error {
	cfg, err := machineConfig(r.Config, r.LogLevel, r.Memory, r.NoPreempt)
	if err != nil {
		return err
	}
	m, err := NewMachine(cfg, os.Stdout)
	if err != nil {
		return err
	}

	if restore, err := rawTerminal(os.Stdin); err == nil {
		defer restore()
	} else {
		log.WithError(err).Debug("terminal left in cooked mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	keys := make(chan []byte, 16)
	g.Go(func() error {
		defer stop()
		return m.Run(ctx, keys)
	})
	g.Go(func() error {
		return pumpKeys(ctx, os.Stdin, keys)
	})
	return g.Wait()
}

// pumpKeys types everything read from r on the emulated keyboard until
// ctx is done.
func pumpKeys(ctx context.Context, r io.Reader, keys chan<- []byte) error {
	t := newTypist()
	chunks := make(chan []byte)
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				select {
				case chunks <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done(): // nobody is listening, drop it
				}
			}
			if err != nil {
				close(chunks)
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-chunks:
			if !ok {
				return nil
			}
			codes := t.scancodes(p)
			if len(codes) == 0 {
				continue
			}
			select {
			case keys <- codes:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

type vectorsCmd struct {
	Config    string `name:"config" type:"existingfile" help:"path to a TOML machine description"`
	NoPreempt bool   `name:"no-preempt" help:"bind the local timer to a framed handler"`
}

func (v *vectorsCmd) Run(*kong.Context) error {
	cfg, err := machineConfig(v.Config, "warn", 0, v.NoPreempt)
	if err != nil {
		return err
	}
	m, err := NewMachine(cfg, io.Discard)
	if err != nil {
		return err
	}
	if err := m.Boot(); err != nil {
		return err
	}
	return printVectors(os.Stdout, m.kernel.idt)
}

func printVectors(w io.Writer, idt *InterruptDescriptorTable) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "VECTOR\tNAME\tENTRY\tSTACK")
	for i := range idt.entries {
		e := &idt.entries[i]
		if !e.present() {
			continue
		}
		stack := "current"
		if e.ist != 0 {
			stack = fmt.Sprintf("ist%d", e.ist-1)
		}
		fmt.Fprintf(tw, "%#02x\t%v\t%v\t%s\n", i, Vector(i), e.kind, stack)
	}
	return tw.Flush()
}
