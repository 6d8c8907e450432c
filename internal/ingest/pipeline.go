// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package ingest

import (
	"context"
	"log/slog"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Step is a single stage of the ingestion pipeline.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State holds what the steps hand to each other for one document.
type State struct {
	Input   Input
	DocType string
	Hash    string

	// Subject and Sender come from the carrying e-mail, if any, and fill
	// metadata the classifier left empty.
	Subject string
	Sender  string

	Structure *document.Structure
	Formatted string
	Document  *document.Processed
	Embedding []float32
	Record    *store.Record
}

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs every step against state. The returned error keeps the code
// of the failing step's error so callers can still map it to a status.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.Execute(ctx, state); err != nil {
			code := dserr.CodeOf(err)
			if code == "" {
				code = dserr.CodeIngestPipelineFailure
			}
			return dserr.Wrap(err, code, "pipeline step "+step.Name()+" failed",
				dserr.Field("step", i+1),
				dserr.Field("filename", state.Input.Filename),
			)
		}
		slog.Debug("pipeline step done", "step", step.Name(), "filename", state.Input.Filename)
	}
	return nil
}
