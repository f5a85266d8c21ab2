package service

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// MinChunkChars is the shortest trimmed chunk, in characters, worth returning.
	MinChunkChars = 100
	// MinDotLeaderLines and MaxDotLeaderRatio detect table-of-contents pages:
	// a chunk is dropped when it has more than MinDotLeaderLines dot-leader
	// lines and they make up more than MaxDotLeaderRatio of all lines.
	MinDotLeaderLines = 3
	MaxDotLeaderRatio = 0.2

	scorePrecision = 1e4
)

var dotLeaders = []string{". . .", "....", "…"}

// IsLowQuality reports whether a chunk is too short or looks like a table
// of contents.
func IsLowQuality(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinChunkChars {
		return true
	}

	lines := strings.Split(text, "\n")
	dotLines := 0
	for _, line := range lines {
		if isDotLeader(line) {
			dotLines++
		}
	}
	return dotLines > MinDotLeaderLines && float64(dotLines)/float64(len(lines)) > MaxDotLeaderRatio
}

func isDotLeader(line string) bool {
	for _, marker := range dotLeaders {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// Score converts a cosine distance in [0, 2] to a relevance in [0, 1].
func Score(distance float64) float64 {
	return 1 - distance/2
}

// RoundScore rounds a relevance score to four decimal places.
func RoundScore(score float64) float64 {
	return math.Round(score*scorePrecision) / scorePrecision
}
