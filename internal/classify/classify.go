// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package classify turns document text into a classified document using the
// classification backend pool.
package classify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

const (
	// DefaultDepartment receives documents whose category has no mapping.
	DefaultDepartment = "info@bank.de"
	// DefaultTemperature keeps classification close to deterministic.
	DefaultTemperature = 0.1
	// DefaultMaxTokens bounds the reply size.
	DefaultMaxTokens = 1024
)

// DefaultDepartments maps each category to its department mailbox.
func DefaultDepartments() map[document.Category]string {
	return map[document.Category]string{
		document.CategoryLoanApplication: "loans@bank.de",
		document.CategoryAccountInquiry:  "accounts@bank.de",
		document.CategoryComplaint:       "complaints@bank.de",
		document.CategoryKYCUpdate:       "compliance@bank.de",
		document.CategoryGeneral:         "info@bank.de",
	}
}

// DefaultUrgencyKeywords escalate a document to high urgency when found in
// its text.
func DefaultUrgencyKeywords() []string {
	return []string{"urgent", "dringend", "immediately", "sofort", "complaint", "beschwerde", "fraud", "betrug"}
}

// Config tunes the classification service.
type Config struct {
	// PromptLanguage selects the system prompt (document.PromptEnglish or
	// document.PromptGerman).
	PromptLanguage    string
	Departments       map[document.Category]string
	DefaultDepartment string
	// UrgencyKeywords are matched case-insensitively. Nil means none.
	UrgencyKeywords []string
	Temperature     float64
	MaxTokens       int
	// Now stamps ProcessedAt. Defaults to time.Now.
	Now func() time.Time
}

// reply is what one classification backend call yields.
type reply struct {
	classification *document.Classification
	backend        string
}

// Service classifies documents.
type Service struct {
	catalog      *provider.Catalog[provider.Completer]
	orchestrator *provider.Orchestrator[string, reply]
	systemPrompt string
	cfg          Config
}

// New wires a Service to the classification pool. Every backend in the
// dispatcher's registry must resolve in catalog.
func New(catalog *provider.Catalog[provider.Completer], d *provider.Dispatcher, ocfg provider.OrchestratorConfig, cfg Config) (*Service, error) {
	if catalog == nil || d == nil {
		return nil, dserr.New(dserr.CodeConfigValidateInvalidValue, "classify: catalog and dispatcher are required")
	}
	if d.Registry().Task() != provider.TaskClassification {
		return nil, dserr.Errorf(dserr.CodeConfigValidateInvalidValue,
			"classify: dispatcher serves %q, want %q", d.Registry().Task(), provider.TaskClassification)
	}
	if err := catalog.Validate(d.Registry()); err != nil {
		return nil, err
	}

	if cfg.Departments == nil {
		cfg.Departments = DefaultDepartments()
	}
	if cfg.DefaultDepartment == "" {
		cfg.DefaultDepartment = DefaultDepartment
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		catalog:      catalog,
		systemPrompt: document.SystemPrompt(cfg.PromptLanguage),
		cfg:          cfg,
	}

	o, err := provider.NewOrchestrator[string, reply](d, s.invoke, ocfg)
	if err != nil {
		return nil, err
	}
	s.orchestrator = o
	return s, nil
}

// Pool exposes the orchestrator for status and reset.
func (s *Service) Pool() provider.Pool {
	return s.orchestrator
}

// Classify runs text through the classification pool and returns a
// processed document with department and attention flags set.
func (s *Service) Classify(ctx context.Context, text string) (*document.Processed, error) {
	if strings.TrimSpace(text) == "" {
		return nil, dserr.New(dserr.CodeDocumentInputInvalid, "classify: document text is empty")
	}

	r, err := s.orchestrator.Do(ctx, text)
	if err != nil {
		return nil, err
	}

	doc := document.NewProcessed(text, r.classification, s.cfg.Now())
	doc.Backend = r.backend

	if doc.Urgency != document.UrgencyHigh {
		if kw := s.matchKeyword(text); kw != "" {
			slog.Debug("urgency escalated by keyword", "keyword", kw, "was", doc.Urgency)
			doc.Urgency = document.UrgencyHigh
		}
	}

	doc.AssignedDepartment = s.Department(doc.Category)
	doc.RequiresImmediateAttention = doc.Urgency == document.UrgencyHigh
	return doc, nil
}

// Department returns the mailbox for c.
func (s *Service) Department(c document.Category) string {
	if d, ok := s.cfg.Departments[c]; ok && d != "" {
		return d
	}
	return s.cfg.DefaultDepartment
}

// invoke is one attempt against one backend. A reply that does not parse is
// returned as an error so the orchestrator retries it.
func (s *Service) invoke(ctx context.Context, backend, text string) (reply, error) {
	client, model, err := s.catalog.Resolve(backend)
	if err != nil {
		return reply{}, err
	}

	raw, err := client.Complete(ctx, provider.CompletionRequest{
		Model:        model,
		SystemPrompt: s.systemPrompt,
		Prompt:       document.ClassificationPrompt(text),
		Temperature:  s.cfg.Temperature,
		MaxTokens:    s.cfg.MaxTokens,
		JSON:         true,
	})
	if err != nil {
		return reply{}, err
	}

	c, err := document.ParseClassification(raw)
	if err != nil {
		return reply{}, dserr.With(err, dserr.FieldBackend(backend))
	}
	return reply{classification: c, backend: backend}, nil
}

func (s *Service) matchKeyword(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range s.cfg.UrgencyKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}
