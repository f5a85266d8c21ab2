package chunker

import (
	"regexp"
	"strconv"
	"strings"
)

var pageMarkerRe = regexp.MustCompile(`\[PAGE:(\d+)\]`)

// PagesOf returns the page range named by the markers inside a chunk:
// "" without markers, "N" for one page, "N-M" from first to last marker.
func PagesOf(chunk string) string {
	matches := pageMarkerRe.FindAllStringSubmatch(chunk, -1)
	if len(matches) == 0 {
		return ""
	}
	first, err1 := strconv.Atoi(matches[0][1])
	last, err2 := strconv.Atoi(matches[len(matches)-1][1])
	if err1 != nil || err2 != nil {
		return ""
	}
	if first == last {
		return strconv.Itoa(first)
	}
	return strconv.Itoa(first) + "-" + strconv.Itoa(last)
}

// AttributePages resolves the page label of every chunk in order. A chunk
// without markers continues the last page seen in an earlier chunk.
func AttributePages(chunks []string) []string {
	out := make([]string, len(chunks))
	last := ""
	for i, chunk := range chunks {
		pages := PagesOf(chunk)
		switch {
		case pages != "":
			if idx := strings.LastIndex(pages, "-"); idx >= 0 {
				last = pages[idx+1:]
			} else {
				last = pages
			}
		case last != "":
			pages = last
		}
		out[i] = pages
	}
	return out
}
