// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package main

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docsort-dev/docsort/internal/config"
	"github.com/docsort-dev/docsort/internal/secrets"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// secretStoreFactory creates the secrets.Store used for keyring:// values and
// the secret command. Tests substitute an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// NewRootCmd creates the root docsort command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docsort",
		Short:         "docsort: banking document intake and routing",
		Long:          "docsort recognises, classifies, stores and routes banking documents using a rotating pool of model backends.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStatusCmd(),
		newResetCmd(),
		newIngestCmd(),
		newSearchCmd(),
		newSecretCmd(),
		newVersionCmd(),
		newDoctorCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return dserr.Errorf(dserr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so Viper never mistakes the ./docsort
		// binary for an extension-less config file.
		v.SetConfigName("docsort")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/docsort")
		v.AddConfigPath("/etc/docsort")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return dserr.Errorf(dserr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// init writes its own config file.
			if cmd.Name() == "init" {
				return finishViper(cmd, v)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return dserr.Errorf(dserr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	return finishViper(cmd, v)
}

func finishViper(cmd *cobra.Command, v *viper.Viper) error {
	if err := v.BindPFlag("storage.data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return dserr.Errorf(dserr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return dserr.Errorf(dserr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	setupLogging(cmd.ErrOrStderr(), v.GetBool("verbose"))
	config.WarnInsecurePermissions(v.ConfigFileUsed())
	return nil
}

// setupLogging installs a tint handler as the default slog logger.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isTerminal(f)
	}
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	})))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// loadConfig decodes the global Viper state after resolving keyring values.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}
