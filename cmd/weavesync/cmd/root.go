package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/awnumar/memguard"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmcleod/weavesync/config"
	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/fetcher"
	"github.com/jmcleod/weavesync/weave"
)

var (
	configPath string
	settings   = config.New()
	cfg        *config.Config
	logger     = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "weavesync",
	Short: "weavesync reads data from a Firefox Sync (Weave 1.1) account",
	Long: `A client for Firefox Sync storage version 5 servers. It resolves the
storage node of an account, verifies and decrypts records with the account's
sync key and prints collections and objects.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(settings, configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger, err = newLogger(cmd.ErrOrStderr(), cfg)
		return err
	},
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		reportError(os.Stderr, err)
		memguard.Purge()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (yaml, toml or json)")
	pf.String("server", "", "user API server URL")
	pf.String("account", "", "account name")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text or json)")
	pf.String("cache-path", "", "snapshot cache database")

	for flag, key := range map[string]string{
		"server":     config.KeyServer,
		"account":    config.KeyAccount,
		"log-level":  config.KeyLogLevel,
		"log-format": config.KeyLogFormat,
		"cache-path": config.KeyCachePath,
	} {
		if err := settings.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func newLogger(w io.Writer, c *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid %s %q", config.KeyLogLevel, c.LogLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// reportError prints err with the failing stage and error kind highlighted.
func reportError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	var stageErr *weave.StageError
	if errors.As(err, &stageErr) {
		red.Fprint(w, "bootstrap failed")
		fmt.Fprint(w, " at ")
		yellow.Fprintf(w, "%s", stageErr.Stage)
		fmt.Fprintf(w, " [%s]: %v\n", errdefs.Kind(err), stageErr.Err)
	} else {
		red.Fprint(w, "error")
		if kind := errdefs.Kind(err); kind != "unknown" {
			fmt.Fprintf(w, " [%s]", kind)
		}
		fmt.Fprintf(w, ": %v\n", err)
	}
	if fetcher.IsUnauthorized(err) {
		yellow.Fprintln(w, "the server rejected the account name or password")
	}
}
