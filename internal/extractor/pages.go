package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// Page-offset heuristic. A bare number on the first or last line of a page is
// taken as its printed number; the first page at or after MinOffsetPageIndex
// whose offset falls in [MinPageOffset, MaxPageOffset] fixes the offset for
// the whole document.
const (
	MinPrintedPage     = 1
	MaxPrintedPage     = 999
	MinPageOffset      = 0
	MaxPageOffset      = 20
	MinOffsetPageIndex = 2
)

var printedPageRe = regexp.MustCompile(`^(\d{1,3})$`)

// PageMarker returns the inline marker placed before a page's text.
func PageMarker(page int) string {
	return "[PAGE:" + strconv.Itoa(page) + "]"
}

// PrintedPageNumber looks for a standalone page number on the last, then the
// first, non-empty line of a page.
func PrintedPageNumber(text string) (int, bool) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return 0, false
	}

	for _, line := range []string{lines[len(lines)-1], lines[0]} {
		m := printedPageRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= MinPrintedPage && n <= MaxPrintedPage {
			return n, true
		}
	}
	return 0, false
}

// DetectPageOffset returns the difference between physical and printed page
// numbers, if one can be established.
func DetectPageOffset(pages []string) (int, bool) {
	for i, text := range pages {
		if i < MinOffsetPageIndex || strings.TrimSpace(text) == "" {
			continue
		}
		printed, ok := PrintedPageNumber(text)
		if !ok {
			continue
		}
		offset := (i + 1) - printed
		if offset >= MinPageOffset && offset <= MaxPageOffset {
			return offset, true
		}
	}
	return 0, false
}

// PageLabel returns the printed number for the 0-based physical page index.
// Pages that would land below 1 after the offset keep their physical number.
func PageLabel(index, offset int, found bool) int {
	physical := index + 1
	if !found {
		return physical
	}
	if n := physical - offset; n >= 1 {
		return n
	}
	return physical
}
