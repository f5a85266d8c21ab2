package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// PdftotextTimeout bounds a single pdftotext invocation.
const PdftotextTimeout = 2 * time.Minute

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// PdftotextBackend shells out to poppler's pdftotext, which handles
// embedded Cyrillic fonts well and separates pages with form feeds.
type PdftotextBackend struct {
	runner CommandRunner
	binary string
}

func NewPdftotextBackend(runner CommandRunner, binary string) *PdftotextBackend {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PdftotextBackend{runner: runner, binary: binary}
}

func (b *PdftotextBackend) Name() string { return "pdftotext" }

func (b *PdftotextBackend) Extract(ctx context.Context, path string) (Pages, error) {
	ctx, cancel := context.WithTimeout(ctx, PdftotextTimeout)
	defer cancel()

	out, err := b.runner.Run(ctx, b.binary, "-enc", "UTF-8", "-q", path, "-")
	if err != nil {
		return Pages{}, err
	}
	return Pages{Texts: SplitFormFeed(string(out)), Paged: true}, nil
}

// SplitFormFeed splits pdftotext output into pages. pdftotext terminates
// every page, including the last, with a form feed.
func SplitFormFeed(out string) []string {
	pages := strings.Split(out, "\f")
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}

// GoPDFBackend reads PDFs in-process with ledongthuc/pdf.
type GoPDFBackend struct{}

func NewGoPDFBackend() *GoPDFBackend { return &GoPDFBackend{} }

func (b *GoPDFBackend) Name() string { return "gopdf" }

func (b *GoPDFBackend) Extract(ctx context.Context, path string) (pages Pages, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Pages{}, err
	}
	defer f.Close()

	n := r.NumPage()
	texts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return Pages{}, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Pages{}, fmt.Errorf("page %d: %w", i, err)
		}
		texts = append(texts, text)
	}
	return Pages{Texts: texts, Paged: true}, nil
}
