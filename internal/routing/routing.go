// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

// Package routing hands classified documents to their department and raises
// priority alerts.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/metrics"
	"github.com/docsort-dev/docsort/internal/store"
)

// AlertHighPriority is the only alert type raised today.
const AlertHighPriority = "HIGH_PRIORITY"

// Alert flags a document that needs attention now.
type Alert struct {
	Type       string            `json:"type"`
	DocumentID string            `json:"document_id"`
	Category   document.Category `json:"category"`
	CustomerID string            `json:"customer_id,omitempty"`
	Reason     string            `json:"reason"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Notification is the message delivered to a department.
type Notification struct {
	Department string           `json:"department"`
	DocumentID string           `json:"document_id"`
	Urgency    document.Urgency `json:"urgency"`
	Subject    string           `json:"subject"`
	Body       string           `json:"body"`
	Alert      *Alert           `json:"alert,omitempty"`
}

// Result describes what Route did.
type Result struct {
	DocumentID       string           `json:"document_id"`
	Department       string           `json:"department"`
	Urgency          document.Urgency `json:"urgency"`
	Alerts           []Alert          `json:"alerts_created"`
	NotificationSent bool             `json:"notification_sent"`
}

// Notifier delivers department notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}

// AuditActionRoute is the audit action recorded for every routed document.
const AuditActionRoute = "route"

// Router routes processed documents.
type Router struct {
	notifier Notifier
	audit    store.AuditStore
	now      func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithAuditLog persists one audit entry per routed document.
func WithAuditLog(a store.AuditStore) Option {
	return func(r *Router) { r.audit = a }
}

// WithNowFunc overrides the audit timestamp source.
func WithNowFunc(fn func() time.Time) Option {
	return func(r *Router) { r.now = fn }
}

// NewRouter creates a Router. A nil notifier logs notifications.
func NewRouter(n Notifier, opts ...Option) *Router {
	if n == nil {
		n = NewLogNotifier(nil)
	}
	r := &Router{notifier: n, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route raises an alert when the document needs immediate attention,
// notifies its department and writes an audit line. Notification failures
// are reported in the result, not returned.
func (r *Router) Route(ctx context.Context, doc *document.Processed) Result {
	res := Result{
		DocumentID: doc.ID,
		Department: doc.AssignedDepartment,
		Urgency:    doc.Urgency,
		Alerts:     []Alert{},
	}

	var alert *Alert
	if doc.RequiresImmediateAttention {
		a := priorityAlert(doc)
		alert = &a
		res.Alerts = append(res.Alerts, a)
		slog.Warn("priority alert raised",
			"document_id", doc.ID,
			"category", doc.Category,
			"reason", a.Reason,
		)
	}

	n := Notification{
		Department: doc.AssignedDepartment,
		DocumentID: doc.ID,
		Urgency:    doc.Urgency,
		Subject:    Subject(doc),
		Body:       Body(doc),
		Alert:      alert,
	}
	if err := r.notifier.Notify(ctx, n); err != nil {
		metrics.Notifications.WithLabelValues(doc.AssignedDepartment, "failed").Inc()
		slog.Error("department notification failed",
			"document_id", doc.ID,
			"department", doc.AssignedDepartment,
			"error", err,
		)
	} else {
		metrics.Notifications.WithLabelValues(doc.AssignedDepartment, "sent").Inc()
		res.NotificationSent = true
	}

	r.recordAudit(ctx, res)
	return res
}

// recordAudit logs the routing decision and, when configured, persists it.
func (r *Router) recordAudit(ctx context.Context, res Result) {
	slog.Info("document routed",
		"document_id", res.DocumentID,
		"department", res.Department,
		"urgency", res.Urgency,
		"alerts", len(res.Alerts),
		"notified", res.NotificationSent,
	)
	if r.audit == nil {
		return
	}

	result := "notified"
	if !res.NotificationSent {
		result = "notify_failed"
	}
	reasons := make([]string, 0, len(res.Alerts))
	for _, a := range res.Alerts {
		reasons = append(reasons, a.Reason)
	}

	entry := &store.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  r.now(),
		Action:     AuditActionRoute,
		DocumentID: res.DocumentID,
		Department: res.Department,
		Details: map[string]any{
			"urgency": string(res.Urgency),
			"alerts":  reasons,
		},
		Result: result,
	}
	if err := r.audit.Append(ctx, entry); err != nil {
		slog.Error("writing routing audit entry failed", "document_id", res.DocumentID, "error", err)
	}
}

// Close releases the notifier.
func (r *Router) Close() error {
	return r.notifier.Close()
}

func priorityAlert(doc *document.Processed) Alert {
	return Alert{
		Type:       AlertHighPriority,
		DocumentID: doc.ID,
		Category:   doc.Category,
		CustomerID: doc.Metadata.CustomerID,
		Reason:     AlertReason(doc),
		CreatedAt:  doc.ProcessedAt,
	}
}

// AlertReason explains why doc needs attention.
func AlertReason(doc *document.Processed) string {
	var reasons []string
	if doc.Urgency == document.UrgencyHigh {
		reasons = append(reasons, "High urgency classification")
	}
	if strings.Contains(strings.ToLower(string(doc.Category)), "complaint") {
		reasons = append(reasons, "Customer complaint")
	}
	if doc.ExtractedInfo.FraudRisk {
		reasons = append(reasons, "Potential fraud risk")
	}
	if len(reasons) == 0 {
		return "Manual review required"
	}
	return strings.Join(reasons, " | ")
}

// Subject is the notification subject line.
func Subject(doc *document.Processed) string {
	return fmt.Sprintf("[%s] New %s - Customer: %s",
		strings.ToUpper(string(doc.Urgency)), doc.Category, orDefault(doc.Metadata.CustomerID, "Unknown"))
}

// Body is the plain-text notification body.
func Body(doc *document.Processed) string {
	keyPoints := doc.ExtractedInfo.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	kp, _ := json.MarshalIndent(keyPoints, "", "  ")

	var b strings.Builder
	b.WriteString("New Document Received\n")
	b.WriteString("=====================\n\n")
	fmt.Fprintf(&b, "Category: %s\n", doc.Category)
	fmt.Fprintf(&b, "Urgency: %s\n", doc.Urgency)
	fmt.Fprintf(&b, "Customer ID: %s\n", orDefault(doc.Metadata.CustomerID, "Not identified"))
	fmt.Fprintf(&b, "Account Number: %s\n\n", orDefault(doc.Metadata.AccountNumber, "Not identified"))
	fmt.Fprintf(&b, "Required Action:\n%s\n\n", orDefault(doc.ExtractedInfo.RequiredAction, "Review required"))
	fmt.Fprintf(&b, "Key Points:\n%s\n\n", kp)
	fmt.Fprintf(&b, "Document ID: %s\n", doc.ID)
	fmt.Fprintf(&b, "Processed: %s\n", doc.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Confidence Score: %.2f\n\n", doc.Confidence)
	b.WriteString("---\n")
	fmt.Fprintf(&b, "Access the full document in the system using ID: %s\n", doc.ID)
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
