package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGarbled(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"below minimum length", strings.Repeat("é", GarbledMinLength-1), false},
		{"at minimum length", strings.Repeat("é", GarbledMinLength), true},
		{"diacritics exactly at ratio", strings.Repeat("é", 15) + strings.Repeat("a", 85), false},
		{"diacritics just above ratio", strings.Repeat("é", 16) + strings.Repeat("a", 84), true},
		{"cyrillic equal to diacritics", strings.Repeat("é", 16) + strings.Repeat("ж", 16) + strings.Repeat("a", 68), false},
		{"cyrillic fewer than diacritics", strings.Repeat("é", 16) + strings.Repeat("ж", 15) + strings.Repeat("a", 69), true},
		{"glyph id artifact", "(cid:72)(cid:101) " + strings.Repeat("a", 60), true},
		{"glyph id outside sample", strings.Repeat("a", GarbledSampleSize) + "(cid:72)", false},
		{"diacritics outside sample", strings.Repeat("a", GarbledSampleSize) + strings.Repeat("é", 600), false},
		{"clean russian", cleanRussian, false},
		{"cp1251 read as latin-1", garbledLatin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGarbled(tt.text))
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"control chars removed", "a\x00b\x07c\x0bd\x0ce\x1ff\x7fg", "abcdefg"},
		{"tabs and newlines kept", "a\tb\nc", "a\tb\nc"},
		{"blank runs collapsed", "a\n\n\n\n\nb", "a\n\nb"},
		{"two newlines untouched", "a\n\nb", "a\n\nb"},
		{"trailing spaces stripped", "a   \nb\t\n", "a\nb"},
		{"crlf trailing cr stripped", "a\r\nb\r\n", "a\nb"},
		{"outer whitespace trimmed", "\n\n  text  \n\n", "text"},
		{"empty", "  \x00 \n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
