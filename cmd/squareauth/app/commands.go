// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the commands of the squareauth command-line application.
package app

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/squareauth/pkg/config"
	"github.com/stacklok/squareauth/pkg/logger"
	"github.com/stacklok/squareauth/pkg/square"
	"github.com/stacklok/squareauth/pkg/versions"
)

// NewRootCmd creates the root command of the squareauth CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "squareauth",
		DisableAutoGenTag: true,
		Short:             "Sign in with Square from the command line",
		Long: `squareauth drives the Square OAuth2 authorization-code flow.

It builds the authorization URL a merchant is redirected to, exchanges the
authorization code Square returns for an access token, and fetches the merchant
profile from the Connect API. The configuration file is read from --config,
or from squareauth/config.yaml in the XDG config directories.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the squareauth configuration file")
	err = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newAuthorizeURLCmd())
	rootCmd.AddCommand(newExchangeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

func newAuthorizeURLCmd() *cobra.Command {
	var (
		state  string
		planID string
		params map[string]string
	)

	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the Square authorization URL",
		Long: `Print the URL a merchant must visit to grant access.

--param simulates the query string of the request that starts the sign-in;
configured pass-through parameters such as plan_id are copied from it onto
the authorization URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			strategy, err := loadStrategy()
			if err != nil {
				return err
			}

			query := url.Values{}
			for k, v := range params {
				query.Set(k, v)
			}
			if planID != "" {
				query.Set(square.PlanIDParam, planID)
			}
			if state == "" {
				state = uuid.NewString()
			}

			target, err := strategy.NewFlow().AuthorizeURL(query, state)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), target)
			return err
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "OAuth2 state value (random when empty)")
	cmd.Flags().StringVar(&planID, "plan-id", "", "Square plan to preselect")
	cmd.Flags().StringToStringVar(&params, "param", nil, "Inbound request parameter as key=value (repeatable)")

	return cmd
}

func newExchangeCmd() *cobra.Command {
	var (
		code        string
		callbackURL string
	)

	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code and print the merchant identity",
		Long: `Exchange an authorization code for an access token, fetch the merchant
profile from the Connect API and print the resulting identity as JSON.

Pass either the code itself or the full callback URL Square redirected to.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := callbackQuery(code, callbackURL)
			if err != nil {
				return err
			}

			strategy, err := loadStrategy()
			if err != nil {
				return err
			}

			flow := strategy.NewFlow()
			identity, err := flow.HandleCallback(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}

			out, err := json.MarshalIndent(identity, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode identity: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code returned by Square")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "Full callback URL, including its query string")
	cmd.MarkFlagsMutuallyExclusive("code", "callback-url")
	cmd.MarkFlagsOneRequired("code", "callback-url")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the squareauth configuration file.

This command checks:
- YAML syntax validity
- Required fields presence
- Endpoint URLs and the token method
- The CA bundle, when one is configured`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			strategy, err := cfg.NewStrategy()
			if err != nil {
				logger.Errorf("Configuration validation failed: %v", err)
				return fmt.Errorf("validation failed: %w", err)
			}

			resolved := strategy.Config()
			logger.Infof("✓ Configuration is valid")
			logger.Infof("  Client ID: %s", resolved.ClientID)
			logger.Infof("  Site: %s", resolved.ClientOptions.Site)
			logger.Infof("  Connect site: %s", resolved.ClientOptions.ConnectSite)
			logger.Infof("  Auth scheme: %s", resolved.ClientOptions.AuthScheme)

			if show {
				out, err := cfg.RedactedYAML()
				if err != nil {
					return fmt.Errorf("failed to render configuration: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "Print the loaded configuration with secrets redacted")

	return cmd
}

func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the version of squareauth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()

			if jsonOutput {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "squareauth %s\n", info.Version)
			_, _ = fmt.Fprintf(w, "Commit: %s\n", info.Commit)
			_, _ = fmt.Fprintf(w, "Built: %s\n", info.BuildDate)
			_, _ = fmt.Fprintf(w, "Go version: %s\n", info.GoVersion)
			_, _ = fmt.Fprintf(w, "Platform: %s\n", info.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version information as JSON")

	return cmd
}

func loadConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	logger.Debugf("Loading configuration from: %s", configPath)

	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		logger.Errorf("Failed to load configuration: %v", err)
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	return cfg, nil
}

func loadStrategy() (*square.Strategy, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.NewStrategy()
}

// callbackQuery returns the callback parameters from a bare code or a full callback URL.
func callbackQuery(code, callbackURL string) (url.Values, error) {
	if callbackURL == "" {
		return url.Values{"code": {code}}, nil
	}
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("invalid callback URL: %w", err)
	}
	return u.Query(), nil
}
