// Package cli wires the calgrid subcommands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"calgrid/internal/config"
	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/store"
)

// App carries the persistent flag values shared by every subcommand.
type App struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	Pretty     bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "calgrid",
		Short:        "Calendar event layout engine",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Lay out the week containing a date
  calgrid layout --date 2025-06-02 --ics ./team.ics --pretty

  # Serve the JSON API
  calgrid serve --config ./calgrid.yaml

  # Write a default config
  calgrid config init --config ./calgrid.yaml
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "./calgrid.yaml", "Path to config file (.yaml or .toml)")
	cmd.PersistentFlags().StringVar(&app.EnvFile, "env-file", ".env", "Dotenv file with CALGRID_* overrides (ignored if missing)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error); overrides config")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newLayoutCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}

// loadConfig reads the config file, applies env overrides and the log level.
func loadConfig(app *App) (*config.Config, error) {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", app.ConfigPath, err)
	}
	if err := cfg.ApplyEnv(app.EnvFile); err != nil {
		return nil, err
	}
	if app.LogLevel != "" {
		cfg.LogLevel = app.LogLevel
	}
	level, ok := appLog.ParseLevel(cfg.LogLevel)
	if !ok {
		appLog.Warn("unknown log level, using info", "level", cfg.LogLevel)
	}
	appLog.SetLevel(level)

	for _, w := range cfg.Warnings() {
		appLog.Warn("config: " + w)
	}
	return cfg, nil
}

// icsSources merges configured sources with extra file paths.
func icsSources(cfg *config.Config, extraPaths []string) []ics.Source {
	out := make([]ics.Source, 0, len(cfg.ICS)+len(extraPaths))
	for _, s := range cfg.ICS {
		out = append(out, ics.Source{ID: s.ID, URL: s.URL, Path: s.Path})
	}
	for i, p := range extraPaths {
		out = append(out, ics.Source{ID: fmt.Sprintf("file-%d", i+1), Path: p})
	}
	return out
}

// loadEvents imports every source into st, returning the number stored.
func loadEvents(ctx context.Context, cfg *config.Config, st *store.Store, sources []ics.Source) int {
	if len(sources) == 0 {
		return 0
	}
	fetcher := ics.NewFetcher(cfg.CacheDir, nil)
	events, errs := fetcher.LoadAll(ctx, sources, st.Location())
	if len(errs) > 0 {
		appLog.Warn("some ICS sources failed", "error_count", len(errs))
	}
	return st.Load(events)
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
