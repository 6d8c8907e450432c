// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/ingest"
	"github.com/docsort-dev/docsort/internal/store"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

type fakeProcessor struct {
	got []ingest.Input
}

func (f *fakeProcessor) ProcessDocument(_ context.Context, in ingest.Input) (*ingest.Result, error) {
	f.got = append(f.got, in)
	return &ingest.Result{
		Record: &store.Record{Document: &document.Processed{
			ID:                 "doc-" + in.Filename,
			Category:           document.CategoryComplaint,
			Urgency:            document.UrgencyHigh,
			AssignedDepartment: "complaints@bank.de",
			Confidence:         0.9,
		}},
		Duplicate: in.Filename == "again.txt",
	}, nil
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("Sehr geehrte Damen und Herren"), 0o600))
	return path
}

func TestIngestAll(t *testing.T) {
	dir := t.TempDir()
	pdf := writeInput(t, dir, "letter.pdf")
	txt := writeInput(t, dir, "again.txt")

	proc := &fakeProcessor{}
	buf := new(bytes.Buffer)
	err := ingestAll(context.Background(), buf, ingest.NewLoader(nil), proc, "", []string{pdf, txt})
	require.NoError(t, err)

	require.Len(t, proc.got, 2)
	assert.Equal(t, ingest.SourceFor("letter.pdf"), proc.got[0].Source)
	assert.Equal(t, ingest.SourceFor("again.txt"), proc.got[1].Source)
	assert.Contains(t, buf.String(), pdf+": doc-letter.pdf complaints/high -> complaints@bank.de (confidence 0.90)\n")
	assert.Contains(t, buf.String(), "(duplicate)")
}

func TestIngestAll_SourceOverrideAndFailures(t *testing.T) {
	dir := t.TempDir()
	ok := writeInput(t, dir, "scan.png")
	missing := filepath.Join(dir, "missing.pdf")

	proc := &fakeProcessor{}
	buf := new(bytes.Buffer)
	err := ingestAll(context.Background(), buf, ingest.NewLoader(nil), proc, document.SourceEmail, []string{missing, ok})
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeCLIRequestFailure))
	assert.Contains(t, err.Error(), "1 of 2")

	require.Len(t, proc.got, 1)
	assert.Equal(t, document.SourceEmail, proc.got[0].Source)
	assert.Contains(t, buf.String(), missing+": error:")
}

func TestIngestCommand_RejectsUnknownSource(t *testing.T) {
	isolate(t, newMockSecretStore())

	_, err := execute(t, "", "ingest", "--source", "fax", "x.pdf")
	require.Error(t, err)
	assert.True(t, dserr.HasCode(err, dserr.CodeCLIInputInvalid))
}
