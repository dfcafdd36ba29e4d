// Package encoding provides the fixed-width name encoding used by scene records.
package encoding

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NameSize is the width of every name field on the wire.
const NameSize = 64

// FixedString NFC-normalizes s and packs it into a size-byte, NUL-padded field.
// Names that do not fit are cut at the last whole rune.
func FixedString(s string, size int) []byte {
	out := make([]byte, size)
	b := norm.NFC.Bytes([]byte(s))
	if len(b) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		b = b[:cut]
	}
	copy(out, b)
	return out
}

// Name packs s into a NameSize field.
func Name(s string) []byte {
	return FixedString(s, NameSize)
}

// FixedStringToUTF8 reads a NUL-terminated field back into a string.
// Invalid UTF-8 sequences are replaced rather than rejected.
func FixedStringToUTF8(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return string(bytes.ToValidUTF8(data, []byte("\ufffd")))
}
