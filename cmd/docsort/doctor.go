// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docsort-dev/docsort/internal/config"
	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// doctorHTTPClient is used for provider key checks.
var doctorHTTPClient = &http.Client{Timeout: 10 * time.Second}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the config, the running server, every configured provider key and the data directory.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "", "server address to check (default server.listen)")
	cmd.Flags().Bool("skip-keys", false, "do not contact providers to check API keys")

	return cmd
}

type doctorCheck struct {
	name string
	fn   func() string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	addr = serverAddress(addr)
	skipKeys, _ := cmd.Flags().GetBool("skip-keys")

	cfg, cfgErr := loadConfig()

	checks := []doctorCheck{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Server", func() string { return checkServer(addr) }},
	}
	if cfg != nil {
		if !skipKeys {
			checks = append(checks, providerChecks(cmd.Context(), cfg)...)
		}
		checks = append(checks, doctorCheck{"Data dir", func() string { return checkDataDir(cfg.Storage.DataDir) }})
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}
	return nil
}

func checkBinary() string {
	return fmt.Sprintf("docsort %s (commit %s)", version, commit)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(loadErr error) string {
	if loadErr != nil {
		return fmt.Sprintf("invalid: %s", loadErr)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkServer(addr string) string {
	var body struct {
		Status string `json:"status"`
	}
	if err := newAPIClient(addr).getJSON("/health", nil, &body); err != nil {
		if dserr.HasCode(err, dserr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'docsort start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func providerChecks(ctx context.Context, cfg *config.Config) []doctorCheck {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	checks := make([]doctorCheck, 0, len(names))
	for _, name := range names {
		pc := cfg.Providers[name]
		checks = append(checks, doctorCheck{
			name: "Provider " + name,
			fn: func() string {
				ctx, cancel := context.WithTimeout(ctx, doctorHTTPClient.Timeout)
				defer cancel()
				if err := provider.CheckKey(ctx, doctorHTTPClient, name, pc.APIKey, pc.BaseURL); err != nil {
					return fmt.Sprintf("error: %s", err)
				}
				return "key accepted"
			},
		})
	}
	return checks
}

func checkDataDir(dir string) string {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Sprintf("%s does not exist yet (created on first start)", dir)
	case err != nil:
		return fmt.Sprintf("error: %s", err)
	case !info.IsDir():
		return fmt.Sprintf("%s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Sprintf("%s is not writable: %s", dir, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	if _, err := os.Stat(filepath.Join(dir, "documents.db")); err == nil {
		return fmt.Sprintf("%s (database present)", dir)
	}
	return fmt.Sprintf("%s (writable)", dir)
}
