// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/docsort-dev/docsort/pkg/health"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend pool health",
		Long:  "Query the running server for the health of every backend pool: availability, rate-limit marks and usage counts.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "server address (defaults to server.listen)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	addr = serverAddress(addr)
	out := cmd.OutOrStdout()

	var body struct {
		Pools []health.PoolStatus `json:"pools"`
	}
	if err := newAPIClient(addr).getJSON("/api/v1/dispatch", nil, &body); err != nil {
		if dserr.HasCode(err, dserr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "docsort at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	for _, p := range body.Pools {
		printPool(out, p)
	}
	return nil
}

func printPool(w io.Writer, p health.PoolStatus) {
	current := p.Current
	if current == "" {
		current = "-"
	}
	_, _ = fmt.Fprintf(w, "%s: %d/%d available, current %s, cooldown %gs\n",
		p.Task, len(p.Available), p.TotalBackends, current, p.CooldownSeconds)

	names := make([]string, 0, len(p.UsageCounts))
	for name := range p.UsageCounts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		state := "available"
		if slices.Contains(p.RateLimited, name) {
			state = "rate limited"
		}
		_, _ = fmt.Fprintf(w, "  %-40s %-12s used %d\n", name, state, p.UsageCounts[name])
	}
	if len(p.UsageCounts) == 0 && len(p.Available) > 0 {
		_, _ = fmt.Fprintf(w, "  unused: %s\n", strings.Join(p.Available, ", "))
	}
}
