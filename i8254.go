package main

import (
	"time"

	"github.com/sirupsen/logrus"
)

// i8254 is channel 0 of the programmable interval timer, wired to the
// legacy timer line. Its rate comes from the host ticker.
type i8254 struct {
	ticks  <-chan time.Time
	fired  int
	reload uint16
	mode   uint8
}

func (pit *i8254) out8(port uint16, v uint8) {
	switch port {
	case pitCommand:
		pit.mode = (v >> 1) & 7
	case pitChannel0:
		pit.reload = pit.reload>>8 | uint16(v)<<8
	default:
		log.WithFields(logrus.Fields{"port": hex16(port), "value": hex16(uint16(v))}).Debug("i8254: channel not wired")
	}
}

// tick raises the timer line if the host clock has ticked.
func (pit *i8254) tick(pic *dualPIC) {
	select {
	case <-pit.ticks:
		pit.fire(pic)
	default:
	}
}

func (pit *i8254) fire(pic *dualPIC) {
	pit.fired++
	pic.raise(irqTimer)
}
