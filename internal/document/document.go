// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package document holds the banking document model and the text handling
// around it: recognition results, field extraction, prompts and parsing of
// classification replies.
package document

import (
	"time"

	"github.com/google/uuid"
)

// Category is the business category a document is classified into.
type Category string

const (
	CategoryLoanApplication Category = "loan_applications"
	CategoryAccountInquiry  Category = "account_inquiries"
	CategoryComplaint       Category = "complaints"
	CategoryKYCUpdate       Category = "kyc_updates"
	CategoryGeneral         Category = "general_correspondence"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryLoanApplication,
	CategoryAccountInquiry,
	CategoryComplaint,
	CategoryKYCUpdate,
	CategoryGeneral,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Urgency is the handling priority.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Valid reports whether u is a known urgency level.
func (u Urgency) Valid() bool {
	return u == UrgencyHigh || u == UrgencyMedium || u == UrgencyLow
}

// Source says how a document reached the system.
type Source string

const (
	SourceScan    Source = "scan"
	SourceEmail   Source = "email"
	SourceDigital Source = "digital"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceScan || s == SourceEmail || s == SourceDigital
}

// DefaultLanguage is assumed when the model does not report one.
const DefaultLanguage = "de"

// Metadata identifies the customer and the correspondence.
type Metadata struct {
	CustomerID    string `json:"customer_id,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Language      string `json:"language"`
}

// ExtractedInfo is what the model pulled out of the text, enriched with
// fields found by pattern matching.
type ExtractedInfo struct {
	RequiredAction   string   `json:"required_action"`
	KeyPoints        []string `json:"key_points"`
	MentionedAmounts string   `json:"mentioned_amounts,omitempty"`
	ReferenceNumbers []string `json:"reference_numbers"`
	IBAN             string   `json:"iban,omitempty"`
	BIC              string   `json:"bic,omitempty"`
	FraudRisk        bool     `json:"fraud_risk,omitempty"`
}

// Processed is a classified document ready to be stored and routed.
type Processed struct {
	ID                         string        `json:"id"`
	RawText                    string        `json:"raw_text"`
	Category                   Category      `json:"category"`
	Urgency                    Urgency       `json:"urgency_level"`
	Metadata                   Metadata      `json:"metadata"`
	ExtractedInfo              ExtractedInfo `json:"extracted_info"`
	Confidence                 float64       `json:"confidence_score"`
	ProcessedAt                time.Time     `json:"processed_at"`
	AssignedDepartment         string        `json:"assigned_department"`
	RequiresImmediateAttention bool          `json:"requires_immediate_attention"`
	Source                     Source        `json:"source,omitempty"`
	// Backend is the classification backend that produced the result.
	Backend string `json:"backend,omitempty"`
}

// NewProcessed builds a Processed document from a classification with a
// fresh ID.
func NewProcessed(rawText string, c *Classification, now time.Time) *Processed {
	return &Processed{
		ID:            uuid.NewString(),
		RawText:       rawText,
		Category:      c.Category,
		Urgency:       c.Urgency,
		Metadata:      c.Metadata,
		ExtractedInfo: c.ExtractedInfo,
		Confidence:    c.Confidence,
		ProcessedAt:   now,
	}
}

// Table is a Markdown table found in recognised text.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Page is one recognised page.
type Page struct {
	Index      int             `json:"index"`
	Markdown   string          `json:"markdown"`
	Images     []Image         `json:"images"`
	Dimensions *PageDimensions `json:"dimensions,omitempty"`
}

// Image is an embedded image with its bounding box.
type Image struct {
	ID           string `json:"id"`
	TopLeftX     int    `json:"top_left_x"`
	TopLeftY     int    `json:"top_left_y"`
	BottomRightX int    `json:"bottom_right_x"`
	BottomRightY int    `json:"bottom_right_y"`
	ImageBase64  string `json:"image_base64,omitempty"`
}

// PageDimensions is the rendered size of a page.
type PageDimensions struct {
	DPI    int `json:"dpi"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Structure is the recognised form of a document.
type Structure struct {
	RawText string  `json:"raw_text"`
	Pages   []Page  `json:"pages"`
	Tables  []Table `json:"tables"`
	// Fields holds banking fields found in the text, keyed by FieldIBAN etc.
	Fields         map[string]string `json:"fields"`
	DocumentType   string            `json:"document_type"`
	Language       string            `json:"language,omitempty"`
	Model          string            `json:"model"`
	PagesProcessed int               `json:"pages_processed"`
	DocSizeBytes   int               `json:"doc_size_bytes"`
	// Backend is the recognition backend, empty for passthrough text.
	Backend string `json:"backend,omitempty"`
}
