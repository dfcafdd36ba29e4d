package encoding

import (
	"testing"
	"unicode/utf8"
)

func TestFixedString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		size int
		want string
	}{
		{"ascii", "Cube", 64, "Cube"},
		{"empty", "", 8, ""},
		{"exact", "abcdefgh", 8, "abcdefgh"},
		{"truncate ascii", "abcdefghij", 8, "abcdefgh"},
		// "é" is two bytes, the cut must not split it.
		{"truncate rune boundary", "abcdefg\u00e9", 8, "abcdefg"},
		// decomposed e + combining acute becomes one precomposed rune
		{"nfc", "Cafe\u0301", 64, "Caf\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := FixedString(tt.in, tt.size)
			if len(b) != tt.size {
				t.Fatalf("len = %d, want %d", len(b), tt.size)
			}
			got := FixedStringToUTF8(b)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result %q is not valid UTF-8", got)
			}
		})
	}
}

func TestName(t *testing.T) {
	if b := Name("Light"); len(b) != NameSize {
		t.Errorf("Name length = %d, want %d", len(b), NameSize)
	}
}

func TestFixedStringToUTF8Invalid(t *testing.T) {
	got := FixedStringToUTF8([]byte{'a', 0xff, 'b', 0, 'c'})
	if got != "a\ufffdb" {
		t.Errorf("got %q", got)
	}
}
