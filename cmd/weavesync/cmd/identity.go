package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/weavesync/identity"
	"github.com/jmcleod/weavesync/internal/util"
)

var usernameCmd = &cobra.Command{
	Use:   "username [account]",
	Short: "Print the protocol username of an account",
	Long: `Print the username the sync server knows an account by. Plain names are
lower-cased; anything else (such as an e-mail address) is hashed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := cfg.Account
		if len(args) == 1 {
			account = args[0]
		}
		if account == "" {
			return errors.New("no account given")
		}
		fmt.Fprintln(cmd.OutOrStdout(), identity.DeriveUsername(account))
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Convert and generate sync keys",
}

var keyEncodeCmd = &cobra.Command{
	Use:   "encode <hex>",
	Short: "Print the friendly form of a hex sync key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := util.HexDecode(args[0])
		if err != nil {
			return fmt.Errorf("decoding hex key: %w", err)
		}
		defer util.WipeBytes(key)
		friendly, err := identity.EncodeFriendly(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), friendly)
		return nil
	},
}

var keyDecodeCmd = &cobra.Command{
	Use:   "decode <friendly>",
	Short: "Print a friendly sync key as hex",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := identity.DecodeFriendly(args[0])
		if err != nil {
			return err
		}
		defer util.WipeBytes(key)
		fmt.Fprintln(cmd.OutOrStdout(), util.HexEncode(key))
		return nil
	},
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a random sync key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := identity.NewSyncKey()
		if err != nil {
			return err
		}
		defer util.WipeBytes(key)
		friendly, err := identity.EncodeFriendly(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), friendly)
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keyEncodeCmd, keyDecodeCmd, keyGenerateCmd)
	rootCmd.AddCommand(usernameCmd, keyCmd)
}
