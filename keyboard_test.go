package main

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
)

func decodeAll(k *Keyboard, codes ...byte) ([]DecodedKey, error) {
	var keys []DecodedKey
	for _, b := range codes {
		ev, ok, err := k.AddByte(b)
		if err != nil {
			return keys, err
		}
		if !ok {
			continue
		}
		if key, ok := k.ProcessKeyEvent(ev); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func TestKeyboardDecode(t *testing.T) {
	tests := []struct {
		name  string
		hc    HandleControl
		codes []byte
		want  []DecodedKey
	}{
		{"letter", MapLettersToUnicode, []byte{0x1e}, []DecodedKey{{Rune: 'a'}}},
		{"release", MapLettersToUnicode, []byte{0x1e, 0x9e}, []DecodedKey{{Rune: 'a'}}},
		{"shift", MapLettersToUnicode, []byte{0x36, 0x02, 0xb6, 0x02}, []DecodedKey{{Rune: '!'}, {Rune: '1'}}},
		{"caps lock", MapLettersToUnicode, []byte{0x3a, 0xba, 0x10, 0x2a, 0x10}, []DecodedKey{{Rune: 'Q'}, {Rune: 'q'}}},
		{"control letter", MapLettersToUnicode, []byte{0x1d, 0x2e}, []DecodedKey{{Rune: 3}}},
		{"control ignored", IgnoreControl, []byte{0x1d, 0x2e}, []DecodedKey{{Rune: 'c'}}},
		{"extended", MapLettersToUnicode, []byte{0xe0, 0x4b}, []DecodedKey{{RawKey: ArrowLeft, Raw: true}}},
		{"extended delete", MapLettersToUnicode, []byte{0xe0, 0x53}, []DecodedKey{{Rune: 0x7f}}},
		{"numpad with numlock", MapLettersToUnicode, []byte{0x47}, []DecodedKey{{Rune: '7'}}},
		{"numpad without numlock", MapLettersToUnicode, []byte{0x45, 0xc5, 0x47}, []DecodedKey{{RawKey: Home, Raw: true}}},
		{"function key", MapLettersToUnicode, []byte{0x3b}, []DecodedKey{{RawKey: F1, Raw: true}}},
		{"enter", MapLettersToUnicode, []byte{0x1c}, []DecodedKey{{Rune: '\n'}}},
		{"backspace", MapLettersToUnicode, []byte{0x0e}, []DecodedKey{{Rune: 0x08}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, err := decodeAll(NewKeyboard(tt.hc), tt.codes...)
			is.NoErr(err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decode %x (-want +got):\n%s", tt.codes, diff)
			}
		})
	}
}

func TestKeyboardUnknownScancode(t *testing.T) {
	is := is.New(t)
	k := NewKeyboard(MapLettersToUnicode)
	_, _, err := k.AddByte(0x7f)
	is.True(errors.Is(err, ErrUnknownKeyCode))

	// the decoder recovers on the next byte
	keys, err := decodeAll(k, 0x1e)
	is.NoErr(err)
	is.Equal(keys, []DecodedKey{{Rune: 'a'}})
}

func TestTypistRoundTrip(t *testing.T) {
	is := is.New(t)
	const text = "Hello, World! echo ~/a_b|c\n"
	k := NewKeyboard(MapLettersToUnicode)
	keys, err := decodeAll(k, newTypist().scancodes([]byte(text))...)
	is.NoErr(err)
	var got []rune
	for _, key := range keys {
		is.True(!key.Raw)
		got = append(got, key.Rune)
	}
	is.Equal(string(got), text)
}

func TestTypistControlAndTerminalBytes(t *testing.T) {
	is := is.New(t)
	ty := newTypist()
	is.Equal(ty.scancodes([]byte{3}), []byte{0x1d, 0x2e, 0xae, 0x9d})
	is.Equal(ty.scancodes([]byte{'\r'}), ty.scancodes([]byte{'\n'}))
	is.Equal(ty.scancodes([]byte{0x7f}), []byte{0x0e, 0x8e})
	is.Equal(len(ty.scancodes([]byte{0xc3, 0xa9})), 0) // no key types non-ASCII
}
