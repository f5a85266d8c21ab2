package extractor

import (
	"context"
	"errors"
	"os"
	"strings"
	"unicode/utf8"
)

// PlainTextBackend reads UTF-8 text and Markdown files.
type PlainTextBackend struct{}

func NewPlainTextBackend() *PlainTextBackend { return &PlainTextBackend{} }

func (b *PlainTextBackend) Name() string { return "plaintext" }

func (b *PlainTextBackend) Extract(_ context.Context, path string) (Pages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pages{}, err
	}
	if !utf8.Valid(data) {
		return Pages{}, errors.New("file is not valid UTF-8")
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	return Pages{Texts: []string{text}}, nil
}
