package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Region is a half-open range of virtual addresses.
type Region struct {
	Start uint64 `toml:"start"`
	End   uint64 `toml:"end"`
}

func (r Region) contains(va VirtAddr) bool {
	return uint64(va) >= r.Start && uint64(va) < r.End
}

func (r Region) String() string { return fmt.Sprintf("[%#x, %#x)", r.Start, r.End) }

// Config describes the machine and the kernel's vector assignment.
type Config struct {
	MemoryMiB int `toml:"memory_mib"`

	// PICBase is the first vector of the master 8259. The slave follows
	// at PICBase+8.
	PICBase uint8 `toml:"pic_base"`

	// APICTimerVector is the local timer's vector.
	APICTimerVector uint8 `toml:"apic_timer_vector"`

	// Preempt binds the local timer vector to the context switch entry.
	// Without it the timer gets an ordinary framed handler.
	Preempt bool `toml:"preempt"`

	PITPeriod  duration `toml:"pit_period"`
	APICPeriod duration `toml:"apic_period"`

	// LazyRegions are the only addresses the page fault handler backs
	// on demand.
	LazyRegions []Region `toml:"lazy_region"`
}

// duration decodes "10ms" style TOML strings.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig places the 8259 pair directly above the CPU exception
// vectors and the local timer above that.
func DefaultConfig() Config {
	return Config{
		MemoryMiB:       16,
		PICBase:         0x20,
		APICTimerVector: 0x30,
		Preempt:         true,
		PITPeriod:       duration{55 * time.Millisecond},
		APICPeriod:      duration{10 * time.Millisecond},
		LazyRegions: []Region{
			{Start: 0x1000, End: 0x0000_8000_0000_0000},
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

var errInvalidConfig = errors.New("invalid config")

// Validate rejects vector assignments where two sources share a vector
// or a device lands on a CPU exception.
func (c Config) Validate() error {
	switch {
	case c.MemoryMiB < 2:
		return fmt.Errorf("%w: memory_mib %d below 2", errInvalidConfig, c.MemoryMiB)
	case Vector(c.PICBase) < firstDeviceVector:
		return fmt.Errorf("%w: pic_base %#x overlaps CPU exceptions", errInvalidConfig, c.PICBase)
	case c.PICBase%8 != 0:
		return fmt.Errorf("%w: pic_base %#x not a multiple of 8", errInvalidConfig, c.PICBase)
	case int(c.PICBase)+16 > 256:
		return fmt.Errorf("%w: pic_base %#x leaves no room for the slave", errInvalidConfig, c.PICBase)
	case Vector(c.APICTimerVector) < firstDeviceVector:
		return fmt.Errorf("%w: apic_timer_vector %#x overlaps CPU exceptions", errInvalidConfig, c.APICTimerVector)
	case c.APICTimerVector >= c.PICBase && int(c.APICTimerVector) < int(c.PICBase)+16:
		return fmt.Errorf("%w: apic_timer_vector %#x inside 8259 range %#x-%#x", errInvalidConfig, c.APICTimerVector, c.PICBase, int(c.PICBase)+15)
	case c.PITPeriod.Duration < 0 || c.APICPeriod.Duration < 0:
		return fmt.Errorf("%w: negative timer period", errInvalidConfig)
	}
	for _, r := range c.LazyRegions {
		if r.Start%pageSize != 0 || r.End%pageSize != 0 || r.Start >= r.End {
			return fmt.Errorf("%w: lazy region %v", errInvalidConfig, r)
		}
	}
	return nil
}

// picVector returns the vector of legacy line irq.
func (c Config) picVector(irq int) Vector { return Vector(int(c.PICBase) + irq) }

func (c Config) timerVector() Vector     { return c.picVector(irqTimer) }
func (c Config) keyboardVector() Vector  { return c.picVector(irqKeyboard) }
func (c Config) apicTimerVector() Vector { return Vector(c.APICTimerVector) }
