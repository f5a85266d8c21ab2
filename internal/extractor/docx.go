package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DOCXBackend reads paragraph text from word/document.xml.
type DOCXBackend struct{}

func NewDOCXBackend() *DOCXBackend { return &DOCXBackend{} }

func (b *DOCXBackend) Name() string { return "docx" }

func (b *DOCXBackend) Extract(_ context.Context, path string) (Pages, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return Pages{}, fmt.Errorf("open docx archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return Pages{}, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Pages{}, err
		}
		paragraphs, err := parseDocumentXML(content)
		if err != nil {
			return Pages{}, err
		}
		return Pages{Texts: paragraphs}, nil
	}
	return Pages{}, errors.New("word/document.xml not found")
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
	Tabs []struct{}    `xml:"tab"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML returns the trimmed, non-empty paragraphs of the body.
func parseDocumentXML(content []byte) ([]string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}

	var out []string
	for _, para := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range para.Runs {
			for range r.Tabs {
				sb.WriteString("\t")
			}
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}
