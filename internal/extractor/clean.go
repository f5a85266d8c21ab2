package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Garbled-text heuristic thresholds.
const (
	// GarbledMinLength is the rune count below which text is never considered garbled.
	GarbledMinLength = 50
	// GarbledSampleSize is how many leading runes are inspected.
	GarbledSampleSize = 500
	// GarbledDiacriticRatio is the share of Latin-with-diacritic runes in the
	// sample above which text is suspect when Cyrillic is rarer.
	GarbledDiacriticRatio = 0.15
	// GlyphIDArtifact is emitted by PDF tools for unmapped CID fonts.
	GlyphIDArtifact = "(cid:"
)

var (
	controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
)

// IsGarbled reports whether text looks like a Cyrillic font decoded as Latin,
// or contains unmapped glyph ids.
func IsGarbled(text string) bool {
	if utf8.RuneCountInString(text) < GarbledMinLength {
		return false
	}

	sample := []rune(text)
	if len(sample) > GarbledSampleSize {
		sample = sample[:GarbledSampleSize]
	}
	if strings.Contains(string(sample), GlyphIDArtifact) {
		return true
	}

	var cyrillic, diacritic int
	for _, r := range sample {
		switch {
		case r >= 0x0400 && r <= 0x04FF:
			cyrillic++
		case r >= 0x00C0 && r <= 0x00FF:
			diacritic++
		}
	}
	return float64(diacritic) > float64(len(sample))*GarbledDiacriticRatio && cyrillic < diacritic
}

// Clean strips control characters other than newline, tab and carriage
// return, collapses runs of blank lines and trims trailing whitespace.
func Clean(text string) string {
	text = controlCharsRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
