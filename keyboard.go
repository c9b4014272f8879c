package main

import (
	"errors"
	"fmt"
)

// KeyCode identifies a physical key independent of layout.
type KeyCode uint8

const (
	keyNone KeyCode = iota
	Escape
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	PrintScreen
	ScrollLock
	BackTick
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	Minus
	Equals
	Backspace
	Insert
	Home
	PageUp
	NumpadLock
	NumpadSlash
	NumpadStar
	NumpadMinus
	Tab
	BracketSquareLeft
	BracketSquareRight
	BackSlash
	Delete
	End
	PageDown
	Numpad7
	Numpad8
	Numpad9
	NumpadPlus
	CapsLock
	SemiColon
	Quote
	Enter
	Numpad4
	Numpad5
	Numpad6
	ShiftLeft
	Comma
	Fullstop
	Slash
	ShiftRight
	ArrowUp
	Numpad1
	Numpad2
	Numpad3
	NumpadEnter
	ControlLeft
	WindowsLeft
	AltLeft
	Spacebar
	AltRight
	WindowsRight
	Apps
	ControlRight
	ArrowLeft
	ArrowDown
	ArrowRight
	Numpad0
	NumpadPeriod
	A
	B
	C
	D
	E
	F
	G
	H
	I
	J
	K
	L
	M
	N
	O
	P
	Q
	R
	S
	T
	U
	V
	W
	X
	Y
	Z
)

// KeyState is whether a key went down or came up.
type KeyState uint8

const (
	KeyUp KeyState = iota
	KeyDown
)

// KeyEvent is one decoded press or release.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

// DecodedKey is either a character or a key with no character meaning
// in the layout.
type DecodedKey struct {
	Rune   rune
	RawKey KeyCode
	Raw    bool
}

func unicode(r rune) DecodedKey      { return DecodedKey{Rune: r} }
func rawKey(code KeyCode) DecodedKey { return DecodedKey{RawKey: code, Raw: true} }

// HandleControl selects what Ctrl+letter decodes to.
type HandleControl uint8

const (
	// MapLettersToUnicode decodes Ctrl+A..Ctrl+Z to U+0001..U+001A.
	MapLettersToUnicode HandleControl = iota
	// IgnoreControl decodes Ctrl+letter as the letter.
	IgnoreControl
)

type modifiers struct {
	lshift, rshift, lctrl, rctrl, numlock, capslock bool
}

func (m modifiers) shifted() bool { return m.lshift || m.rshift }
func (m modifiers) ctrl() bool    { return m.lctrl || m.rctrl }

// upper reports whether letters decode in upper case.
func (m modifiers) upper() bool { return m.shifted() != m.capslock }

// ErrUnknownKeyCode is returned for scancodes with no key.
var ErrUnknownKeyCode = errors.New("unknown key code")

type decodeState uint8

const (
	stateStart decodeState = iota
	stateExtended
)

const (
	scancodeExtend  = 0xe0
	scancodeRelease = 0x80
)

// Keyboard decodes scancode set 1 into key events and key events into
// characters. It holds partial multi-byte sequences and modifier state
// between calls.
type Keyboard struct {
	state      decodeState
	mods       modifiers
	handleCtrl HandleControl
}

func NewKeyboard(handleCtrl HandleControl) *Keyboard {
	return &Keyboard{
		mods:       modifiers{numlock: true},
		handleCtrl: handleCtrl,
	}
}

// AddByte consumes one scancode byte. It reports an event once a complete
// sequence has been read.
func (k *Keyboard) AddByte(b byte) (KeyEvent, bool, error) {
	switch k.state {
	case stateStart:
		if b == scancodeExtend {
			k.state = stateExtended
			return KeyEvent{}, false, nil
		}
		return event(set1[:], b)
	case stateExtended:
		k.state = stateStart
		return event(set1Extended[:], b)
	}
	s := k.state
	k.state = stateStart
	return KeyEvent{}, false, fmt.Errorf("keyboard: invalid decoder state %d", s)
}

func event(table []KeyCode, b byte) (KeyEvent, bool, error) {
	state := KeyDown
	if b&scancodeRelease != 0 {
		state = KeyUp
		b &^= scancodeRelease
	}
	if int(b) >= len(table) || table[b] == keyNone {
		return KeyEvent{}, false, fmt.Errorf("scancode %#02x: %w", b, ErrUnknownKeyCode)
	}
	return KeyEvent{Code: table[b], State: state}, true, nil
}

// ProcessKeyEvent updates modifier state and resolves presses through the
// layout. Releases and modifier keys decode to nothing.
func (k *Keyboard) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == KeyDown
	switch ev.Code {
	case ShiftLeft:
		k.mods.lshift = down
	case ShiftRight:
		k.mods.rshift = down
	case ControlLeft:
		k.mods.lctrl = down
	case ControlRight:
		k.mods.rctrl = down
	case CapsLock:
		if down {
			k.mods.capslock = !k.mods.capslock
		}
	case NumpadLock:
		if down {
			k.mods.numlock = !k.mods.numlock
		}
	default:
		if down {
			return us104Key(ev.Code, k.mods, k.handleCtrl), true
		}
	}
	return DecodedKey{}, false
}

// set1 maps scancode set 1 make codes to keys.
var set1 = [...]KeyCode{
	0x01: Escape, 0x02: Key1, 0x03: Key2, 0x04: Key3, 0x05: Key4, 0x06: Key5,
	0x07: Key6, 0x08: Key7, 0x09: Key8, 0x0a: Key9, 0x0b: Key0, 0x0c: Minus,
	0x0d: Equals, 0x0e: Backspace, 0x0f: Tab,
	0x10: Q, 0x11: W, 0x12: E, 0x13: R, 0x14: T, 0x15: Y, 0x16: U, 0x17: I,
	0x18: O, 0x19: P, 0x1a: BracketSquareLeft, 0x1b: BracketSquareRight,
	0x1c: Enter, 0x1d: ControlLeft,
	0x1e: A, 0x1f: S, 0x20: D, 0x21: F, 0x22: G, 0x23: H, 0x24: J, 0x25: K,
	0x26: L, 0x27: SemiColon, 0x28: Quote, 0x29: BackTick, 0x2a: ShiftLeft,
	0x2b: BackSlash,
	0x2c: Z, 0x2d: X, 0x2e: C, 0x2f: V, 0x30: B, 0x31: N, 0x32: M,
	0x33: Comma, 0x34: Fullstop, 0x35: Slash, 0x36: ShiftRight,
	0x37: NumpadStar, 0x38: AltLeft, 0x39: Spacebar, 0x3a: CapsLock,
	0x3b: F1, 0x3c: F2, 0x3d: F3, 0x3e: F4, 0x3f: F5, 0x40: F6, 0x41: F7,
	0x42: F8, 0x43: F9, 0x44: F10, 0x45: NumpadLock, 0x46: ScrollLock,
	0x47: Numpad7, 0x48: Numpad8, 0x49: Numpad9, 0x4a: NumpadMinus,
	0x4b: Numpad4, 0x4c: Numpad5, 0x4d: Numpad6, 0x4e: NumpadPlus,
	0x4f: Numpad1, 0x50: Numpad2, 0x51: Numpad3, 0x52: Numpad0,
	0x53: NumpadPeriod, 0x57: F11, 0x58: F12,
}

// set1Extended maps make codes following an 0xe0 prefix.
var set1Extended = [...]KeyCode{
	0x1c: NumpadEnter, 0x1d: ControlRight, 0x2a: PrintScreen, 0x35: NumpadSlash,
	0x37: PrintScreen, 0x38: AltRight, 0x47: Home, 0x48: ArrowUp, 0x49: PageUp,
	0x4b: ArrowLeft, 0x4d: ArrowRight, 0x4f: End, 0x50: ArrowDown,
	0x51: PageDown, 0x52: Insert, 0x53: Delete, 0x5b: WindowsLeft,
	0x5c: WindowsRight, 0x5d: Apps,
}
