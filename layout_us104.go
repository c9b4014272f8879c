package main

// us104Pairs holds the unshifted and shifted character of every key
// whose meaning only depends on shift.
var us104Pairs = map[KeyCode][2]rune{
	BackTick:           {'`', '~'},
	Key1:               {'1', '!'},
	Key2:               {'2', '@'},
	Key3:               {'3', '#'},
	Key4:               {'4', '$'},
	Key5:               {'5', '%'},
	Key6:               {'6', '^'},
	Key7:               {'7', '&'},
	Key8:               {'8', '*'},
	Key9:               {'9', '('},
	Key0:               {'0', ')'},
	Minus:              {'-', '_'},
	Equals:             {'=', '+'},
	BracketSquareLeft:  {'[', '{'},
	BracketSquareRight: {']', '}'},
	BackSlash:          {'\\', '|'},
	SemiColon:          {';', ':'},
	Quote:              {'\'', '"'},
	Comma:              {',', '<'},
	Fullstop:           {'.', '>'},
	Slash:              {'/', '?'},
}

// us104Fixed holds keys that decode to one character regardless of
// modifiers.
var us104Fixed = map[KeyCode]rune{
	Escape:      0x1b,
	Backspace:   0x08,
	Tab:         '\t',
	Enter:       '\n',
	Spacebar:    ' ',
	Delete:      0x7f,
	NumpadSlash: '/',
	NumpadStar:  '*',
	NumpadMinus: '-',
	NumpadPlus:  '+',
	NumpadEnter: '\n',
}

// us104Numpad holds the digit of each numpad key with num lock on, and
// the navigation key it acts as with num lock off.
var us104Numpad = map[KeyCode]struct {
	r   rune
	nav KeyCode
}{
	Numpad0:      {'0', Insert},
	Numpad1:      {'1', End},
	Numpad2:      {'2', ArrowDown},
	Numpad3:      {'3', PageDown},
	Numpad4:      {'4', ArrowLeft},
	Numpad5:      {'5', keyNone},
	Numpad6:      {'6', ArrowRight},
	Numpad7:      {'7', Home},
	Numpad8:      {'8', ArrowUp},
	Numpad9:      {'9', PageUp},
	NumpadPeriod: {'.', Delete},
}

// us104Key resolves a pressed key on a US 104-key keyboard.
func us104Key(code KeyCode, mods modifiers, hc HandleControl) DecodedKey {
	if code >= A && code <= Z {
		off := rune(code - A)
		switch {
		case mods.ctrl() && hc == MapLettersToUnicode:
			return unicode(0x01 + off)
		case mods.upper():
			return unicode('A' + off)
		default:
			return unicode('a' + off)
		}
	}
	if p, ok := us104Pairs[code]; ok {
		if mods.shifted() {
			return unicode(p[1])
		}
		return unicode(p[0])
	}
	if r, ok := us104Fixed[code]; ok {
		return unicode(r)
	}
	if n, ok := us104Numpad[code]; ok {
		if mods.numlock {
			return unicode(n.r)
		}
		if n.nav == keyNone {
			return rawKey(code)
		}
		return rawKey(n.nav)
	}
	return rawKey(code)
}
