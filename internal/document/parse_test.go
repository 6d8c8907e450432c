// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package document_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/docsort-dev/docsort/internal/document"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `{
  "category": "complaints",
  "urgency": "high",
  "metadata": {"customer_id": "KD123456", "account_number": null, "email": "max@example.de", "phone": null, "subject": "Beschwerde"},
  "extracted_info": {
    "required_action": "Gebühr erstatten",
    "key_points": ["Gebühr doppelt belastet"],
    "mentioned_amounts": "€25,00",
    "reference_numbers": ["REF-1"]
  },
  "confidence_score": 0.92
}`

func TestParseClassification(t *testing.T) {
	c, err := document.ParseClassification(validReply)
	require.NoError(t, err)

	assert.Equal(t, document.CategoryComplaint, c.Category)
	assert.Equal(t, document.UrgencyHigh, c.Urgency)
	assert.Equal(t, "KD123456", c.Metadata.CustomerID)
	assert.Empty(t, c.Metadata.AccountNumber)
	assert.Equal(t, "de", c.Metadata.Language)
	assert.Equal(t, "€25,00", c.ExtractedInfo.MentionedAmounts)
	assert.Equal(t, []string{"REF-1"}, c.ExtractedInfo.ReferenceNumbers)
	assert.False(t, c.ExtractedInfo.FraudRisk)
	assert.InDelta(t, 0.92, c.Confidence, 1e-9)
}

func TestParseClassification_Tolerance(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		check func(t *testing.T, c *document.Classification)
	}{
		{
			name:  "code fence",
			reply: "```json\n" + validReply + "\n```",
			check: func(t *testing.T, c *document.Classification) {
				assert.Equal(t, document.CategoryComplaint, c.Category)
			},
		},
		{
			name:  "chatter around object",
			reply: "Here is the result:\n" + validReply + "\nHope this helps.",
			check: func(t *testing.T, c *document.Classification) {
				assert.Equal(t, document.UrgencyHigh, c.Urgency)
			},
		},
		{
			name:  "string confidence and upper case enums",
			reply: `{"category":"KYC_UPDATES","urgency":"Low","metadata":{},"extracted_info":{},"confidence_score":"0.7"}`,
			check: func(t *testing.T, c *document.Classification) {
				assert.Equal(t, document.CategoryKYCUpdate, c.Category)
				assert.Equal(t, document.UrgencyLow, c.Urgency)
				assert.InDelta(t, 0.7, c.Confidence, 1e-9)
				assert.NotNil(t, c.ExtractedInfo.KeyPoints)
			},
		},
		{
			name:  "confidence clamped",
			reply: `{"category":"complaints","urgency":"high","confidence_score":1.7}`,
			check: func(t *testing.T, c *document.Classification) {
				assert.Equal(t, 1.0, c.Confidence)
			},
		},
		{
			name:  "list amounts and string fraud flag",
			reply: `{"category":"complaints","urgency":"high","extracted_info":{"mentioned_amounts":["€10","€20"],"fraud_risk":"true"},"confidence_score":0.5}`,
			check: func(t *testing.T, c *document.Classification) {
				assert.Equal(t, "€10, €20", c.ExtractedInfo.MentionedAmounts)
				assert.True(t, c.ExtractedInfo.FraudRisk)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := document.ParseClassification(tt.reply)
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestParseClassification_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "not json", reply: "I cannot classify this document."},
		{name: "unknown category", reply: `{"category":"mortgages","urgency":"high","confidence_score":0.9}`},
		{name: "unknown urgency", reply: `{"category":"complaints","urgency":"critical","confidence_score":0.9}`},
		{name: "missing confidence", reply: `{"category":"complaints","urgency":"high"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := document.ParseClassification(tt.reply)
			require.Error(t, err)
			assert.True(t, dserr.HasCode(err, dserr.CodeDocumentResponseInvalid), "got %s", dserr.CodeOf(err))
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, document.CleanModelJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, document.CleanModelJSON("  {\"a\":1}  "))
	assert.Equal(t, "```", document.CleanModelJSON("```"))
}

func TestClassificationPromptTruncates(t *testing.T) {
	long := strings.Repeat("ä", document.MaxPromptRunes+500)
	prompt := document.ClassificationPrompt(long)

	assert.Contains(t, prompt, "DOCUMENT TEXT:")
	assert.Equal(t, document.MaxPromptRunes, strings.Count(prompt, "ä"))
	assert.True(t, utf8.ValidString(prompt))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", document.Truncate("abc", 5))
	assert.Equal(t, "ab", document.Truncate("abc", 2))
	assert.Equal(t, "", document.Truncate("abc", 0))
	assert.Equal(t, "üö", document.Truncate("üöä", 2))
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, document.SystemPrompt("en"), "loan_applications")
	assert.Contains(t, document.SystemPrompt("de"), "Kredit")
	assert.Equal(t, document.SystemPrompt("en"), document.SystemPrompt("fr"))
}
