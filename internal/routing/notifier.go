// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier on logger, or on slog.Default when
// logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "department notification",
		"department", n.Department,
		"document_id", n.DocumentID,
		"subject", n.Subject,
		"alert", n.Alert != nil,
	)
	return nil
}

func (l *LogNotifier) Close() error { return nil }

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig addresses the notification topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NewKafkaWriter creates a writer that hashes message keys onto partitions
// and waits for the leader's ack.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaNotifier publishes notifications as JSON, keyed by department so each
// department's messages stay ordered.
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaNotifier wraps w.
func NewKafkaNotifier(w MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return dserr.Wrap(err, dserr.CodeRoutingNotifyFailure, "encoding notification",
			dserr.FieldDocumentID(n.DocumentID))
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.Department),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "document_id", Value: []byte(n.DocumentID)},
			{Key: "urgency", Value: []byte(n.Urgency)},
		},
	})
	if err != nil {
		return dserr.Wrap(err, dserr.CodeRoutingNotifyFailure, "publishing notification",
			dserr.FieldDocumentID(n.DocumentID))
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
