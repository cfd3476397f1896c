// Package keyboard provides the on-screen keyboard layouts and the logic that
// applies a key press to the input buffer.
package keyboard

import "unicode/utf8"

const (
	KeyBackspace = "Backspace"
	KeyEnter     = "Enter"
	KeySpace     = " "
)

// KeyKind classifies a logical key event.
type KeyKind string

const (
	KindCharacter KeyKind = "character"
	KindBackspace KeyKind = "backspace"
	KindEnter     KeyKind = "enter"
)

// Layout is a grid of key labels, top row first.
type Layout [][]string

var layouts = map[string]Layout{
	"en": {
		{"`", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "-", "="},
		{"q", "w", "e", "r", "t", "y", "u", "i", "o", "p", "[", "]", "\\"},
		{"a", "s", "d", "f", "g", "h", "j", "k", "l", ";", "'"},
		{"z", "x", "c", "v", "b", "n", "m", ",", ".", "/"},
		{KeySpace, KeyBackspace, KeyEnter},
	},
	"hi": {
		{"~", "१", "२", "३", "४", "५", "६", "७", "८", "९", "०", "-", "ऋ"},
		{"ौ", "ै", "ा", "ी", "ू", "ब", "ह", "ग", "द", "ज", "ड", "ज्ञ", "त्र"},
		{"ो", "े", "्", "ि", "ु", "प", "र", "क", "त", "च", "ट", "ष"},
		{"ं", "म", "न", "व", "ल", "स", ",", ".", "य", "श"},
		{KeySpace, KeyBackspace, KeyEnter},
	},
}

// LayoutFor returns the glyph grid for a language. Languages without a
// dedicated layout use the English one.
func LayoutFor(language string) Layout {
	if layout, ok := layouts[language]; ok {
		return layout
	}
	return layouts["en"]
}

// HasLayout reports whether language has a dedicated layout.
func HasLayout(language string) bool {
	_, ok := layouts[language]
	return ok
}

// Contains reports whether key is present in the layout.
func (l Layout) Contains(key string) bool {
	for _, row := range l {
		for _, k := range row {
			if k == key {
				return true
			}
		}
	}
	return false
}

// Classify maps a key label to its logical kind.
func Classify(key string) KeyKind {
	switch key {
	case KeyBackspace:
		return KindBackspace
	case KeyEnter:
		return KindEnter
	default:
		return KindCharacter
	}
}

// Apply returns the input after pressing key and whether the key requests a
// submit. Backspace removes the last rune, Enter leaves the input unchanged.
func Apply(input, key string) (string, bool) {
	switch Classify(key) {
	case KindBackspace:
		if input == "" {
			return input, false
		}
		_, size := utf8.DecodeLastRuneInString(input)
		return input[:len(input)-size], false
	case KindEnter:
		return input, true
	default:
		return input + key, false
	}
}
