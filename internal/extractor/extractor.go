// Package extractor turns uploaded documents into page-annotated text.
//
// Each supported format has an ordered chain of backends. The first backend
// that produces non-empty, non-garbled text wins; later backends are only
// tried when an earlier one fails or its output looks mis-decoded.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/logger"
)

// Format is a supported document family.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
)

// Pages is the raw output of a backend. Paged is false for formats without
// physical pages; such output is joined without page markers.
type Pages struct {
	Texts []string
	Paged bool
}

// Backend is one extraction strategy for a format.
type Backend interface {
	Name() string
	Extract(ctx context.Context, path string) (Pages, error)
}

// Extractor dispatches by format and walks the backend chain.
type Extractor struct {
	chains map[Format][]Backend
	log    *logger.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithChain replaces the backend chain for a format.
func WithChain(format Format, backends ...Backend) Option {
	return func(e *Extractor) {
		e.chains[format] = backends
	}
}

// WithPdftotext sets the pdftotext binary used by the default PDF chain.
func WithPdftotext(binary string) Option {
	return func(e *Extractor) {
		chain := e.chains[FormatPDF]
		for i, b := range chain {
			if _, ok := b.(*PdftotextBackend); ok {
				chain[i] = NewPdftotextBackend(ExecRunner{}, binary)
			}
		}
	}
}

// New creates an extractor with the default chains.
func New(log *logger.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	e := &Extractor{
		chains: map[Format][]Backend{
			FormatPDF:  {NewPdftotextBackend(ExecRunner{}, "pdftotext"), NewGoPDFBackend()},
			FormatDOCX: {NewDOCXBackend()},
			FormatText: {NewPlainTextBackend()},
		},
		log: log.With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectFormat resolves the document format from the file extension, using
// the content-type as a hint.
func DetectFormat(path, contentType string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	ct := strings.ToLower(contentType)

	switch {
	case ext == ".pdf" || strings.Contains(ct, "pdf"):
		return FormatPDF, nil
	case ext == ".docx" || strings.Contains(ct, "wordprocessingml"):
		return FormatDOCX, nil
	case ext == ".txt" || ext == ".md" || ext == ".markdown":
		return FormatText, nil
	}
	return "", domain.NewDomainError(domain.ErrCodeUnsupportedFormat,
		fmt.Sprintf("unsupported file type %q", ext))
}

// SupportedExtensions lists the extensions accepted by DetectFormat.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".markdown"}
}

// Extract returns the text of the document at path. PDF output carries a
// [PAGE:N] marker before every page. The result is not cleaned.
func (e *Extractor) Extract(ctx context.Context, path, contentType string) (string, error) {
	format, err := DetectFormat(path, contentType)
	if err != nil {
		return "", err
	}

	chain := e.chains[format]
	var (
		best     string
		failures []error
		names    []string
	)

	for _, backend := range chain {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		names = append(names, backend.Name())

		pages, err := backend.Extract(ctx, path)
		if err != nil {
			e.log.Warn("extraction backend failed", "backend", backend.Name(), "file", filepath.Base(path), "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}

		text := Render(pages)
		if strings.TrimSpace(text) == "" {
			e.log.Warn("extraction backend produced no text", "backend", backend.Name(), "file", filepath.Base(path))
			continue
		}
		best = text

		if !IsGarbled(text) {
			e.log.Info("text extracted", "backend", backend.Name(), "file", filepath.Base(path))
			return text, nil
		}
		e.log.Warn("extraction backend produced garbled text", "backend", backend.Name(), "file", filepath.Base(path))
	}

	if best != "" {
		e.log.Warn("all backends produced garbled text, using best available", "file", filepath.Base(path), "backends", names)
		return best, nil
	}

	if len(failures) > 0 && len(failures) == len(chain) {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailed,
			fmt.Sprintf("every extraction backend failed (tried %s)", strings.Join(names, ", ")),
			errors.Join(failures...))
	}
	return "", nil
}

// Render joins backend output into one string. Paged output gets a page
// marker per non-empty page using the detected printed page numbers.
func Render(p Pages) string {
	if !p.Paged {
		parts := make([]string, 0, len(p.Texts))
		for _, t := range p.Texts {
			if strings.TrimSpace(t) != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n\n")
	}

	offset, found := DetectPageOffset(p.Texts)
	parts := make([]string, 0, len(p.Texts))
	for i, t := range p.Texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		parts = append(parts, PageMarker(PageLabel(i, offset, found))+"\n"+t)
	}
	return strings.Join(parts, "\n\n")
}
