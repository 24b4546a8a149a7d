package multimarkov

import (
	"fmt"
	"unicode/utf8"
)

// SymbolCodec converts symbols to and from their text representation. It is
// the seam that lets persistence and export stay independent of the concrete
// symbol type: a store or an exported file only ever sees encoded text.
type SymbolCodec[T comparable] interface {
	// Encode returns the text representation of a symbol.
	Encode(symbol T) string
	// Decode parses a symbol from its text representation.
	Decode(text string) (T, error)
}

// StringCodec is a SymbolCodec for string symbols; encoding is the identity.
type StringCodec struct{}

func (StringCodec) Encode(symbol string) string { return symbol }

func (StringCodec) Decode(text string) (string, error) { return text, nil }

// RuneCodec is a SymbolCodec for rune symbols.
type RuneCodec struct{}

func (RuneCodec) Encode(symbol rune) string { return string(symbol) }

func (RuneCodec) Decode(text string) (rune, error) {
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 || size != len(text) || (r == utf8.RuneError && size == 1) {
		return 0, fmt.Errorf("not a single rune: %q", text)
	}
	return r, nil
}
