// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docsort-dev/docsort/internal/secrets"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage provider keys stored in the OS keyring",
		Long: "Store, read, list and delete secrets kept under the docsort keyring service. " +
			"Reference them from the config as keyring://docsort/<name>.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <name> [value]",
			Short: "Store a secret (reads the value from stdin when omitted)",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  runSecretSet,
		},
		&cobra.Command{
			Use:   "get <name>",
			Short: "Print a stored secret",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretGet,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all stored secret names",
			Args:  cobra.NoArgs,
			RunE:  runSecretList,
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a secret by name",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretDelete,
		},
	)

	return cmd
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return dserr.Errorf(dserr.CodeCLIInputInvalid, "reading secret from stdin: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return dserr.New(dserr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := secretStoreFactory().Store(secrets.Service, name, value); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s; reference it as %s\n", name, secrets.URI(name))
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	val, err := secretStoreFactory().Retrieve(secrets.Service, args[0])
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.Service)
	if err != nil {
		return dserr.Errorf(dserr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.Service, name); err != nil {
		if dserr.HasCode(err, dserr.CodeSecretNotFound) {
			return dserr.Errorf(dserr.CodeSecretNotFound, "secret %q not found", name)
		}
		return dserr.Errorf(dserr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
