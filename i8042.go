package main

import (
	"github.com/sirupsen/logrus"
)

const ps2OutputFull = 1 << 0

// i8042 is the PS/2 controller with a keyboard on its first port. Each
// byte placed in the output buffer raises the keyboard line.
type i8042 struct {
	input <-chan []byte

	queue []byte
	data  byte
	full  bool
	reads int
}

func (k *i8042) in8(port uint16) uint8 {
	if port == ps2Status {
		if k.full {
			return ps2OutputFull
		}
		return 0
	}
	k.full = false
	k.reads++
	return k.data
}

func (k *i8042) out8(port uint16, v uint8) {
	log.WithFields(logrus.Fields{"port": hex16(port), "value": hex16(uint16(v))}).Debug("i8042: command ignored")
}

// enqueue queues scancodes typed on the host.
func (k *i8042) enqueue(codes ...byte) {
	k.queue = append(k.queue, codes...)
}

// poll fills the output buffer from the queue once the previous byte has
// been read.
func (k *i8042) poll(pic *dualPIC) {
	for done := false; !done; {
		select {
		case codes := <-k.input:
			k.enqueue(codes...)
		default:
			done = true
		}
	}
	if k.full || len(k.queue) == 0 {
		return
	}
	k.data, k.queue = k.queue[0], k.queue[1:]
	k.full = true
	pic.raise(irqKeyboard)
}

// typist turns terminal bytes into the scancode set 1 make and break
// sequences a US keyboard would send for them.
type typist struct {
	seq map[byte][]byte
}

func newTypist() *typist {
	t := &typist{seq: make(map[byte][]byte)}
	add := func(r rune, codes ...byte) {
		if r < 0x80 {
			if _, ok := t.seq[byte(r)]; !ok {
				t.seq[byte(r)] = codes
			}
		}
	}
	plain := modifiers{numlock: true}
	shift := modifiers{numlock: true, lshift: true}
	for sc, code := range set1 {
		if code == keyNone {
			continue
		}
		mk, brk := byte(sc), byte(sc)|scancodeRelease
		if d := us104Key(code, plain, MapLettersToUnicode); !d.Raw {
			add(d.Rune, mk, brk)
		}
		if d := us104Key(code, shift, MapLettersToUnicode); !d.Raw {
			add(d.Rune, 0x2a, mk, brk, 0xaa)
		}
	}
	ctrl := modifiers{numlock: true, lctrl: true}
	for sc, code := range set1 {
		if code >= A && code <= Z {
			d := us104Key(code, ctrl, MapLettersToUnicode)
			add(d.Rune, 0x1d, byte(sc), byte(sc)|scancodeRelease, 0x9d)
		}
	}
	t.seq['\r'] = t.seq['\n']
	t.seq[0x7f] = t.seq[0x08]
	return t
}

// scancodes translates p, dropping bytes no key produces.
func (t *typist) scancodes(p []byte) []byte {
	var out []byte
	for _, b := range p {
		s, ok := t.seq[b]
		if !ok {
			log.WithField("byte", hex16(uint16(b))).Debug("typist: no key for byte")
			continue
		}
		out = append(out, s...)
	}
	return out
}
