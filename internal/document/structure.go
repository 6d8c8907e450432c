// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package document

import (
	"fmt"
	"strings"

	"github.com/docsort-dev/docsort/internal/provider"
)

// PassthroughModel is reported for text that skipped recognition.
const PassthroughModel = "text-passthrough"

// TextStructure wraps plain text as a single-page Structure.
func TextStructure(text string) *Structure {
	s := &Structure{
		RawText:        text,
		Pages:          []Page{{Index: 0, Markdown: text, Images: []Image{}}},
		DocumentType:   "text",
		Language:       DefaultLanguage,
		Model:          PassthroughModel,
		PagesProcessed: 1,
		DocSizeBytes:   len(text),
	}
	s.Analyze()
	return s
}

// FromRecognition converts a backend recognition into a Structure. Page
// Markdown is joined with blank lines to form the raw text.
func FromRecognition(rec *provider.Recognition, docType string) *Structure {
	s := &Structure{
		Pages:          make([]Page, 0, len(rec.Pages)),
		DocumentType:   docType,
		Model:          rec.Model,
		PagesProcessed: rec.PagesProcessed,
		DocSizeBytes:   rec.DocSizeBytes,
	}

	texts := make([]string, 0, len(rec.Pages))
	for _, p := range rec.Pages {
		page := Page{Index: p.Index, Markdown: p.Markdown, Images: make([]Image, 0, len(p.Images))}
		for _, img := range p.Images {
			page.Images = append(page.Images, Image{
				ID:           img.ID,
				TopLeftX:     img.TopLeftX,
				TopLeftY:     img.TopLeftY,
				BottomRightX: img.BottomRightX,
				BottomRightY: img.BottomRightY,
				ImageBase64:  img.ImageBase64,
			})
		}
		if p.Dimensions != nil {
			page.Dimensions = &PageDimensions{DPI: p.Dimensions.DPI, Height: p.Dimensions.Height, Width: p.Dimensions.Width}
		}
		s.Pages = append(s.Pages, page)
		texts = append(texts, p.Markdown)
	}
	s.RawText = strings.TrimSpace(strings.Join(texts, "\n\n"))

	s.Analyze()
	return s
}

// Analyze fills Tables and Fields from RawText.
func (s *Structure) Analyze() {
	s.Tables = ExtractTables(s.RawText)
	s.Fields = ExtractBankingFields(s.RawText)
}

// FormatForDownstream renders the structure as the text handed to the
// classifier and the embedder.
func FormatForDownstream(s *Structure) string {
	var b strings.Builder

	b.WriteString("=== DOCUMENT TEXT ===\n")
	b.WriteString(s.RawText)
	b.WriteString("\n\n")

	if len(s.Fields) > 0 {
		b.WriteString("=== EXTRACTED FIELDS ===\n")
		for _, key := range FieldOrder {
			if v, ok := s.Fields[key]; ok {
				fmt.Fprintf(&b, "%s: %s\n", key, v)
			}
		}
		b.WriteString("\n")
	}

	if len(s.Tables) > 0 {
		b.WriteString("=== TABLES ===\n")
		for i, t := range s.Tables {
			fmt.Fprintf(&b, "Table %d:\n", i+1)
			if len(t.Headers) > 0 {
				b.WriteString("Headers: " + strings.Join(t.Headers, " | ") + "\n")
			}
			for _, row := range t.Rows {
				b.WriteString(strings.Join(row, " | ") + "\n")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("=== METADATA ===\n")
	fmt.Fprintf(&b, "Model: %s\n", s.Model)
	fmt.Fprintf(&b, "Pages Processed: %d\n", s.PagesProcessed)
	fmt.Fprintf(&b, "Document Size: %d bytes", s.DocSizeBytes)

	return b.String()
}
