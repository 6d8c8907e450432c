// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package document_test

import (
	"strings"
	"testing"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextStructure(t *testing.T) {
	s := document.TextStructure("Kundennummer: KD123456\nBitte dringend zurückrufen.")

	assert.Equal(t, document.PassthroughModel, s.Model)
	assert.Equal(t, 1, s.PagesProcessed)
	assert.Equal(t, len(s.RawText), s.DocSizeBytes)
	assert.Equal(t, "de", s.Language)
	require.Len(t, s.Pages, 1)
	assert.Equal(t, s.RawText, s.Pages[0].Markdown)
	assert.Equal(t, "KD123456", s.Fields[document.FieldCustomerID])
}

func TestFromRecognition(t *testing.T) {
	rec := &provider.Recognition{
		Model:          "mistral-ocr-latest",
		PagesProcessed: 2,
		DocSizeBytes:   2048,
		Pages: []provider.Page{
			{Index: 0, Markdown: "IBAN DE89 3704 0044 0532 0130 00", Dimensions: &provider.PageDimensions{DPI: 200}},
			{Index: 1, Markdown: "| a | b |\n|---|---|\n| 1 | 2 |", Images: []provider.PageImage{{ID: "img-1"}}},
		},
	}

	s := document.FromRecognition(rec, "pdf")
	assert.Equal(t, "IBAN DE89 3704 0044 0532 0130 00\n\n| a | b |\n|---|---|\n| 1 | 2 |", s.RawText)
	assert.Equal(t, "pdf", s.DocumentType)
	assert.Equal(t, 2048, s.DocSizeBytes)
	require.Len(t, s.Pages, 2)
	assert.Equal(t, 200, s.Pages[0].Dimensions.DPI)
	assert.Equal(t, "img-1", s.Pages[1].Images[0].ID)
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "DE89370400440532013000", s.Fields[document.FieldIBAN])
}

func TestFormatForDownstream(t *testing.T) {
	s := &document.Structure{
		RawText: "Hallo",
		Fields: map[string]string{
			document.FieldBIC:        "COBADEFFXXX",
			document.FieldIBAN:       "DE89370400440532013000",
			document.FieldCustomerID: "KD123456",
		},
		Tables:         []document.Table{{Headers: []string{"A", "B"}, Rows: [][]string{{"1", "2"}}}},
		Model:          "mistral-ocr-latest",
		PagesProcessed: 1,
		DocSizeBytes:   42,
	}

	want := strings.Join([]string{
		"=== DOCUMENT TEXT ===",
		"Hallo",
		"",
		"=== EXTRACTED FIELDS ===",
		"iban: DE89370400440532013000",
		"customer_id: KD123456",
		"bic: COBADEFFXXX",
		"",
		"=== TABLES ===",
		"Table 1:",
		"Headers: A | B",
		"1 | 2",
		"",
		"=== METADATA ===",
		"Model: mistral-ocr-latest",
		"Pages Processed: 1",
		"Document Size: 42 bytes",
	}, "\n")

	assert.Equal(t, want, document.FormatForDownstream(s))
}

func TestFormatForDownstream_OmitsEmptySections(t *testing.T) {
	out := document.FormatForDownstream(document.TextStructure("Guten Tag"))
	assert.NotContains(t, out, "=== EXTRACTED FIELDS ===")
	assert.NotContains(t, out, "=== TABLES ===")
	assert.Contains(t, out, "Model: text-passthrough")
}
