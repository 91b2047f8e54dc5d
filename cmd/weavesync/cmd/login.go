package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmcleod/weavesync/identity"
	"github.com/jmcleod/weavesync/internal/keyring"
	"github.com/jmcleod/weavesync/internal/util"
	boltstore "github.com/jmcleod/weavesync/storage/bbolt"
	"github.com/jmcleod/weavesync/weave"
)

var loginNoVerify bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the account password and sync key in the OS keyring",
	Long: `Ask for the password and sync key of the configured account, check them
against the server and store them in the OS keyring. Later commands read them
from there when they are not configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := promptSecrets(cfg); err != nil {
			return err
		}

		key, err := identity.DecodeFriendly(cfg.SyncKey)
		if err != nil {
			return err
		}
		util.WipeBytes(key)

		if !loginNoVerify {
			session, err := weave.Open(cmd.Context(), provider(cfg),
				weave.WithFetcher(newFetcher(cfg)),
				weave.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			session.Close()
		}

		if err := keyring.Save(cfg.Account, keyring.Secrets{
			Password: cfg.Password,
			SyncKey:  cfg.SyncKey,
		}); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "stored credentials for %s\n", cfg.Account)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials and cached data of the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := keyring.Delete(cfg.Account); err != nil {
			return err
		}
		if err := dropCache(cfg.CachePath, identity.DeriveUsername(cfg.Account)); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "removed credentials for %s\n", cfg.Account)
		return nil
	},
}

func dropCache(path, username string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	cache, err := openCache(path)
	if err != nil {
		return err
	}
	defer cache.Close()
	if err := cache.DeleteUser(username); err != nil && !errors.Is(err, boltstore.ErrUserNotFound) {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

func init() {
	loginCmd.Flags().BoolVar(&loginNoVerify, "no-verify", false, "store without contacting the server")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}
