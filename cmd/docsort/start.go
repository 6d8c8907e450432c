// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the docsort server",
		Long:  "Load configuration, wire the backend pools and stores, and serve the HTTP API until interrupted.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return dserr.Wrap(err, dserr.CodeCLISetupFailure, "loading config")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	srv, err := app.NewServer()
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
