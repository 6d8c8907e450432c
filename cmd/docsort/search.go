// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsort-dev/docsort/internal/server"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().String("address", "", "server address (defaults to server.listen)")
	cmd.Flags().IntP("results", "n", 5, "number of results")
	cmd.Flags().String("category", "", "restrict to one category")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	n, _ := cmd.Flags().GetInt("results")
	category, _ := cmd.Flags().GetString("category")

	q := url.Values{}
	q.Set("query", strings.Join(args, " "))
	q.Set("n_results", strconv.Itoa(n))
	if category != "" {
		q.Set("category", category)
	}

	var body struct {
		Results []server.SearchHit `json:"results"`
	}
	if err := newAPIClient(serverAddress(addr)).getJSON("/api/v1/search", q, &body); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(body.Results) == 0 {
		_, _ = fmt.Fprintln(out, "No matching documents.")
		return nil
	}
	for _, hit := range body.Results {
		_, _ = fmt.Fprintf(out, "%.3f  %s  %v  %v\n", hit.Similarity, hit.DocumentID, hit.Metadata["category"], hit.Metadata["urgency"])
	}
	return nil
}
