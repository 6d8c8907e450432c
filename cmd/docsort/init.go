// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/docsort-dev/docsort/internal/config"
	"github.com/docsort-dev/docsort/internal/provider"
	"github.com/docsort-dev/docsort/internal/secrets"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: "Write a config that references provider keys in the OS keyring. " +
			"Store each key afterwards with 'docsort secret set <provider>'.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().String("path", "", "where to write the config (default ~/.config/docsort/docsort.yaml)")
	cmd.Flags().StringSlice("provider", []string{"mistral"}, "providers to configure")
	cmd.Flags().StringSlice("classification", nil, "classification pool as provider/model refs, in priority order")
	cmd.Flags().StringSlice("recognition", nil, "recognition pool as provider/model refs, in priority order")
	cmd.Flags().String("embedding", "", "embedding backend as a provider/model ref")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	names, _ := cmd.Flags().GetStringSlice("provider")
	cfg, err := starterConfig(names)
	if err != nil {
		return err
	}
	if refs, _ := cmd.Flags().GetStringSlice("classification"); len(refs) > 0 {
		cfg.Dispatch.Classification = refs
	}
	if refs, _ := cmd.Flags().GetStringSlice("recognition"); len(refs) > 0 {
		cfg.Dispatch.Recognition = refs
	}
	if ref, _ := cmd.Flags().GetString("embedding"); ref != "" {
		cfg.Embedding.Backend = ref
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return dserr.Errorf(dserr.CodeCLIInputInvalid, "starter config is invalid: %v", errors.Join(errs...))
	}

	force, _ := cmd.Flags().GetBool("force")
	if err := config.Save(path, cfg, force); err != nil {
		if dserr.HasCode(err, dserr.CodeConfigAlreadyExists) {
			return dserr.Errorf(dserr.CodeConfigAlreadyExists, "%s already exists (use --force to overwrite)", path)
		}
		return err
	}

	printNextSteps(cmd.OutOrStdout(), path, cfg, secretStoreFactory())
	return nil
}

// starterConfig returns the defaults with each provider's key pointing at
// the keyring.
func starterConfig(names []string) (*config.Config, error) {
	if len(names) == 0 {
		return nil, dserr.New(dserr.CodeCLIInputInvalid, "at least one --provider is required")
	}
	known := provider.KnownProviders()

	cfg := config.Default()
	cfg.Providers = make(map[string]config.ProviderConfig, len(names))
	for _, name := range names {
		if !slices.Contains(known, name) {
			return nil, dserr.Errorf(dserr.CodeCLIInputInvalid, "unknown provider %q: want one of %v", name, known)
		}
		cfg.Providers[name] = config.ProviderConfig{APIKey: secrets.URI(name)}
	}
	return cfg, nil
}

func printNextSteps(w io.Writer, path string, cfg *config.Config, store secrets.Store) {
	_, _ = fmt.Fprintf(w, "Wrote %s\n", path)

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if _, err := store.Retrieve(secrets.Service, name); err == nil {
			_, _ = fmt.Fprintf(w, "  %-12s key found in keyring\n", name)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %-12s store the key with: docsort secret set %s\n", name, name)
	}
	_, _ = fmt.Fprintln(w, "Then run 'docsort doctor' to check the keys and 'docsort start' to serve.")
}
