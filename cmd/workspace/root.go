package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/analytics-workspace/internal/config"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/credentials"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/remote"
	"github.com/bryanwahyu/analytics-workspace/internal/logging"
)

// app holds what every subcommand needs; filled by PersistentPreRunE
type app struct {
	configPath string
	token      string

	cfg    *config.Config
	log    zerolog.Logger
	creds  *credentials.FileStore
	client *remote.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "workspace",
		Short:        "Analytics workspace backend and tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	defaultPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultPath, "path to config.yaml")
	root.PersistentFlags().StringVar(&a.token, "token", "", "bearer token to use instead of the stored credential")

	root.AddCommand(newServeCmd(a), newProjectsCmd(a), newDashboardsCmd(a), newLogoutCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	a.creds = credentials.NewFileStore(cfg.Credentials.TokenFile)

	var tokens remote.TokenSource = a.creds
	if a.token != "" {
		tokens = credentials.Static(a.token)
	}
	a.client, err = remote.New(remote.Config{BaseURL: cfg.Remote.BaseURL, Timeout: cfg.Remote.Timeout}, tokens, a.log)
	return err
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored bearer credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credential removed")
			return nil
		},
	}
}
