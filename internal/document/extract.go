// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package document

import (
	"regexp"
	"strings"
)

// Banking field keys in Structure.Fields, in presentation order.
const (
	FieldIBAN          = "iban"
	FieldCustomerID    = "customer_id"
	FieldAccountNumber = "account_number"
	FieldBIC           = "bic"
)

// FieldOrder is the order fields are presented in.
var FieldOrder = []string{FieldIBAN, FieldCustomerID, FieldAccountNumber, FieldBIC}

var (
	// Groups may be separated by single spaces but never by line breaks.
	ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,4})?\b`)

	// First match wins.
	customerIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Kundennummer|Customer\s*ID|Kunden-Nr|KD-Nr)[:\s]+([A-Z0-9]{6,12})`),
		regexp.MustCompile(`(?i)(?:Kunde|Customer)[:\s]+(\d{8,12})`),
		regexp.MustCompile(`(?i)KN[:\s]+([A-Z0-9]{6,12})`),
	}

	accountNumberPattern = regexp.MustCompile(`(?i)(?:Kontonummer|Account\s*Number)[:\s]+([A-Z0-9]{6,20})`)
	bicPattern           = regexp.MustCompile(`(?i)(?:BIC|SWIFT)[:\s]+([A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)`)
)

// ExtractBankingFields finds IBAN, customer ID, account number and BIC in
// text. Missing fields are absent from the map.
func ExtractBankingFields(text string) map[string]string {
	fields := make(map[string]string)

	if m := ibanPattern.FindString(strings.ToUpper(text)); m != "" {
		fields[FieldIBAN] = strings.ReplaceAll(m, " ", "")
	}

	for _, p := range customerIDPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			fields[FieldCustomerID] = m[1]
			break
		}
	}

	if m := accountNumberPattern.FindStringSubmatch(text); m != nil {
		fields[FieldAccountNumber] = m[1]
	}

	if m := bicPattern.FindStringSubmatch(text); m != nil {
		fields[FieldBIC] = m[1]
	}

	return fields
}

// ExtractTables parses Markdown tables: a run of lines containing '|' whose
// first line starts with '|'. The second line is the separator and is
// skipped. Tables without headers or data rows are dropped.
func ExtractTables(markdown string) []Table {
	var tables []Table
	lines := strings.Split(markdown, "\n")

	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "|") {
			i++
			continue
		}

		block := []string{line}
		i++
		for i < len(lines) && strings.Contains(lines[i], "|") {
			block = append(block, strings.TrimSpace(lines[i]))
			i++
		}
		if len(block) < 2 {
			continue
		}

		headers := splitRow(block[0])
		var rows [][]string
		for _, rowLine := range block[2:] {
			if cells := splitRow(rowLine); len(cells) > 0 {
				rows = append(rows, cells)
			}
		}
		if len(headers) > 0 && len(rows) > 0 {
			tables = append(tables, Table{Headers: headers, Rows: rows})
		}
	}
	return tables
}

// splitRow drops the text before the first and after the last '|'.
func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) < 3 {
		return nil
	}
	cells := make([]string, 0, len(parts)-2)
	for _, c := range parts[1 : len(parts)-1] {
		cells = append(cells, strings.TrimSpace(c))
	}
	return cells
}

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"avif": "image/avif",
}

// MIMEType maps a document type (file extension) to a MIME type. Unknown
// types are treated as PDF.
func MIMEType(docType string) string {
	if m, ok := mimeTypes[strings.ToLower(docType)]; ok {
		return m
	}
	return "application/pdf"
}

// IsPlainText reports whether docType skips recognition.
func IsPlainText(docType string) bool {
	switch strings.ToLower(docType) {
	case "txt", "text":
		return true
	}
	return false
}

// DocumentType derives the document type from a file name's extension.
func DocumentType(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx == -1 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
