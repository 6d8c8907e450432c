// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package document

import (
	"encoding/json"
	"strconv"
	"strings"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Classification is a validated model reply.
type Classification struct {
	Category      Category
	Urgency       Urgency
	Metadata      Metadata
	ExtractedInfo ExtractedInfo
	Confidence    float64
}

type rawClassification struct {
	Category string `json:"category"`
	Urgency  string `json:"urgency"`
	Metadata struct {
		CustomerID    *string `json:"customer_id"`
		AccountNumber *string `json:"account_number"`
		Email         *string `json:"email"`
		Phone         *string `json:"phone"`
		Subject       *string `json:"subject"`
		Language      *string `json:"language"`
	} `json:"metadata"`
	ExtractedInfo struct {
		RequiredAction   *string   `json:"required_action"`
		KeyPoints        []string  `json:"key_points"`
		MentionedAmounts flexValue `json:"mentioned_amounts"`
		ReferenceNumbers []string  `json:"reference_numbers"`
		FraudRisk        flexValue `json:"fraud_risk"`
	} `json:"extracted_info"`
	Confidence flexValue `json:"confidence_score"`
}

// flexValue keeps a raw JSON value; models send numbers as strings and
// lists where a string was asked for.
type flexValue struct {
	raw json.RawMessage
}

func (f *flexValue) UnmarshalJSON(b []byte) error {
	f.raw = append(f.raw[:0], b...)
	return nil
}

func (f flexValue) isNull() bool {
	return len(f.raw) == 0 || string(f.raw) == "null"
}

func (f flexValue) asFloat() (float64, bool) {
	if f.isNull() {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(f.raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (f flexValue) asText() string {
	if f.isNull() {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(f.raw, &list); err == nil {
		return strings.Join(list, ", ")
	}
	return strings.Trim(string(f.raw), `"`)
}

func (f flexValue) asBool() bool {
	if f.isNull() {
		return false
	}
	var b bool
	if err := json.Unmarshal(f.raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err == nil {
		v, _ := strconv.ParseBool(strings.TrimSpace(s))
		return v
	}
	return false
}

// ParseClassification validates a model reply. Code fences and text around
// the JSON object are tolerated; an unknown category or urgency is an error.
func ParseClassification(reply string) (*Classification, error) {
	clean := cleanModelJSON(reply)

	var raw rawClassification
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, dserr.Wrapf(err, dserr.CodeDocumentResponseInvalid, "classification reply is not valid JSON")
	}

	category := Category(strings.ToLower(strings.TrimSpace(raw.Category)))
	if !category.Valid() {
		return nil, dserr.Errorf(dserr.CodeDocumentResponseInvalid, "unknown category %q", raw.Category)
	}
	urgency := Urgency(strings.ToLower(strings.TrimSpace(raw.Urgency)))
	if !urgency.Valid() {
		return nil, dserr.Errorf(dserr.CodeDocumentResponseInvalid, "unknown urgency %q", raw.Urgency)
	}

	confidence, ok := raw.Confidence.asFloat()
	if !ok {
		return nil, dserr.New(dserr.CodeDocumentResponseInvalid, "confidence_score is missing or not a number")
	}

	c := &Classification{
		Category:   category,
		Urgency:    urgency,
		Confidence: min(max(confidence, 0), 1),
		Metadata: Metadata{
			CustomerID:    deref(raw.Metadata.CustomerID),
			AccountNumber: deref(raw.Metadata.AccountNumber),
			Email:         deref(raw.Metadata.Email),
			Phone:         deref(raw.Metadata.Phone),
			Subject:       deref(raw.Metadata.Subject),
			Language:      deref(raw.Metadata.Language),
		},
		ExtractedInfo: ExtractedInfo{
			RequiredAction:   deref(raw.ExtractedInfo.RequiredAction),
			KeyPoints:        nonNil(raw.ExtractedInfo.KeyPoints),
			MentionedAmounts: raw.ExtractedInfo.MentionedAmounts.asText(),
			ReferenceNumbers: nonNil(raw.ExtractedInfo.ReferenceNumbers),
			FraudRisk:        raw.ExtractedInfo.FraudRisk.asBool(),
		},
	}
	if c.Metadata.Language == "" {
		c.Metadata.Language = DefaultLanguage
	}
	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// cleanModelJSON strips Markdown fences and keeps the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
