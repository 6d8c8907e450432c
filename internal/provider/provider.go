// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"context"
)

// Task names an independent pool of interchangeable backends.
type Task string

const (
	TaskClassification Task = "classification"
	TaskRecognition    Task = "recognition"
)

// Tasks lists every task in a stable order.
var Tasks = []Task{TaskClassification, TaskRecognition}

// Valid reports whether t is a known task.
func (t Task) Valid() bool {
	return t == TaskClassification || t == TaskRecognition
}

// Client is the part every backend client shares.
type Client interface {
	Name() string
	Close() error
}

// Completer produces a single text completion. Used by the
// classification pool.
type Completer interface {
	Client
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Recognizer turns a binary document into page-level markdown. Used by the
// recognition pool.
type Recognizer interface {
	Client
	Recognize(ctx context.Context, req RecognitionRequest) (*Recognition, error)
}

// Embedder produces one vector per input.
type Embedder interface {
	Client
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// CompletionRequest is a single-turn request to a language model.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
	// JSON asks the backend for a JSON object response when it supports it.
	JSON bool
}

// RecognitionRequest carries one document to be recognised.
type RecognitionRequest struct {
	Model    string
	Data     []byte
	MIMEType string
	// IncludeImages asks the backend to return embedded images when supported.
	IncludeImages bool
}

// Recognition is a backend's view of a document.
type Recognition struct {
	Model          string
	Pages          []Page
	PagesProcessed int
	DocSizeBytes   int
}

// Page is a single recognised page.
type Page struct {
	Index      int
	Markdown   string
	Images     []PageImage
	Dimensions *PageDimensions
}

// PageImage locates an image on a page.
type PageImage struct {
	ID           string
	TopLeftX     int
	TopLeftY     int
	BottomRightX int
	BottomRightY int
	ImageBase64  string
}

// PageDimensions describes the rendered page size.
type PageDimensions struct {
	DPI    int
	Height int
	Width  int
}
