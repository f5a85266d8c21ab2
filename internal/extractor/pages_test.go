package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintedPageNumber(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   int
		wantOK bool
	}{
		{"last line", "Глава 2\nТекст\n17", 17, true},
		{"first line", "12\nТекст страницы", 12, true},
		{"last line wins", "3\nТекст\n7", 7, true},
		{"padded", "  Текст \n   42  \n\n", 42, true},
		{"upper bound", "Текст\n999", 999, true},
		{"four digits", "Текст\n1000", 0, false},
		{"zero", "Текст\n0", 0, false},
		{"not bare", "Текст\nСтр. 5", 0, false},
		{"empty", "   \n ", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PrintedPageNumber(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func pagesWith(n int, at map[int]string) []string {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = "Текст без номера"
	}
	for i, v := range at {
		pages[i] = v
	}
	return pages
}

func TestDetectPageOffset(t *testing.T) {
	tests := []struct {
		name   string
		pages  []string
		want   int
		wantOK bool
	}{
		{"front matter of two pages", pagesWith(5, map[int]string{2: "Введение\n1"}), 2, true},
		{"numbers on first two pages ignored", pagesWith(3, map[int]string{0: "x\n1", 1: "x\n1"}), 0, false},
		{"zero offset", pagesWith(4, map[int]string{2: "x\n3"}), 0, true},
		{"offset at upper bound", pagesWith(22, map[int]string{20: "x\n1"}), 20, true},
		{"offset above bound skipped", pagesWith(23, map[int]string{21: "x\n1", 22: "x\n3"}), 20, true},
		{"negative offset skipped", pagesWith(4, map[int]string{2: "x\n50"}), 0, false},
		{"no numbers", pagesWith(10, nil), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectPageOffset(tt.pages)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageLabel(t *testing.T) {
	assert.Equal(t, 5, PageLabel(4, 0, false))
	assert.Equal(t, 3, PageLabel(4, 2, true))
	assert.Equal(t, 1, PageLabel(2, 2, true))
	// physical 2 minus offset 2 is 0, keep physical
	assert.Equal(t, 2, PageLabel(1, 2, true))
}

func TestRender_PagedWithOffset(t *testing.T) {
	pages := Pages{
		Texts: []string{"Обложка", "", "Введение\n1", "  Двигатель\n2  "},
		Paged: true,
	}

	got := Render(pages)

	assert.Equal(t, "[PAGE:1]\nОбложка\n\n[PAGE:1]\nВведение\n1\n\n[PAGE:2]\nДвигатель\n2", got)
}

func TestRender_PagedWithoutOffset(t *testing.T) {
	got := Render(Pages{Texts: []string{"a", "b"}, Paged: true})
	assert.Equal(t, "[PAGE:1]\na\n\n[PAGE:2]\nb", got)
}

func TestRender_Unpaged(t *testing.T) {
	got := Render(Pages{Texts: []string{"one", " ", "two"}})
	assert.Equal(t, "one\n\ntwo", got)
}

func TestPageMarker(t *testing.T) {
	assert.Equal(t, "[PAGE:191]", PageMarker(191))
}
