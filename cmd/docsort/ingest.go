// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/docsort-dev/docsort/internal/document"
	"github.com/docsort-dev/docsort/internal/ingest"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// documentProcessor is the part of *ingest.Service the ingest command uses.
type documentProcessor interface {
	ProcessDocument(ctx context.Context, in ingest.Input) (*ingest.Result, error)
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <path|gs://bucket/object>...",
		Short: "Process documents from local files or Cloud Storage",
		Long: "Recognise, classify, store and route each document in-process. " +
			"The source type is inferred from the file extension unless --source is given.",
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("source", "", "source type for every document: scan, email or digital")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	if source != "" && !document.Source(source).Valid() {
		return dserr.Errorf(dserr.CodeCLIInputInvalid, "unknown source %q: want scan, email or digital", source)
	}

	cfg, err := loadConfig()
	if err != nil {
		return dserr.Wrap(err, dserr.CodeCLISetupFailure, "loading config")
	}

	ctx := cmd.Context()
	app, err := Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	return ingestAll(ctx, cmd.OutOrStdout(), ingest.NewLoader(nil), app.Ingest, document.Source(source), args)
}

// ingestAll processes every location and reports the first failure after
// trying all of them.
func ingestAll(ctx context.Context, w io.Writer, loader *ingest.Loader, svc documentProcessor, source document.Source, locations []string) error {
	var failed int
	for _, loc := range locations {
		in, err := loader.Load(ctx, loc)
		if err == nil {
			in.Source = source
			if in.Source == "" {
				in.Source = ingest.SourceFor(in.Filename)
			}
			var res *ingest.Result
			res, err = svc.ProcessDocument(ctx, in)
			if err == nil {
				printResult(w, loc, res)
				continue
			}
		}
		failed++
		_, _ = fmt.Fprintf(w, "%s: error: %s\n", loc, err)
	}
	if failed > 0 {
		return dserr.Errorf(dserr.CodeCLIRequestFailure, "%d of %d document(s) failed", failed, len(locations))
	}
	return nil
}

func printResult(w io.Writer, loc string, res *ingest.Result) {
	doc := res.Record.Document
	dup := ""
	if res.Duplicate {
		dup = " (duplicate)"
	}
	_, _ = fmt.Fprintf(w, "%s: %s %s/%s -> %s (confidence %.2f)%s\n",
		loc, doc.ID, doc.Category, doc.Urgency, doc.AssignedDepartment, doc.Confidence, dup)
}
