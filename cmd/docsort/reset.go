// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/docsort-dev/docsort/pkg/health"
)

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "reset <classification|recognition>",
		Short:     "Clear rate-limit marks and usage counts of a backend pool",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(provider.TaskClassification), string(provider.TaskRecognition)},
		RunE:      runReset,
	}

	cmd.Flags().String("address", "", "server address (defaults to server.listen)")

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	task := provider.Task(args[0])
	if !task.Valid() {
		return dserr.Errorf(dserr.CodeCLIInputInvalid, "unknown task %q: want classification or recognition", args[0])
	}

	addr, _ := cmd.Flags().GetString("address")
	var status health.PoolStatus
	if err := newAPIClient(serverAddress(addr)).postJSON("/api/v1/dispatch/"+string(task)+"/reset", &status); err != nil {
		return err
	}

	printPool(cmd.OutOrStdout(), status)
	return nil
}
