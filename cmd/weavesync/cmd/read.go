package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/weavesync/storage"
	"github.com/jmcleod/weavesync/weave"
)

var (
	getRaw    bool
	listRaw   bool
	listCache bool
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the collections of the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		session, done, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer done()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COLLECTION\tMODIFIED")
		for _, c := range session.Collections() {
			fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Time().Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "Show meta/global: storage version, sync ID and engines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		session, done, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer done()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "storage version: %d\n", session.StorageVersion())
		fmt.Fprintf(out, "sync id:         %s\n", session.SyncID())

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENGINE\tVERSION\tSYNC ID")
		for _, e := range session.Engines() {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.Version, e.SyncID)
		}
		return tw.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Print one object",
	Long: `Fetch one object, verify and decrypt it with the default key bundle and
print its payload. With --raw the encrypted envelope is printed instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, done, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer done()

		obj, err := session.FetchObject(cmd.Context(), args[0], args[1], fetchOptions(getRaw)...)
		if err != nil {
			return err
		}
		return writePayload(cmd.OutOrStdout(), obj, getRaw)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "Print every object of a collection",
	Long: `Fetch a full collection and print one object per line as the id, a tab
and the payload. With --cache the encrypted snapshot is kept in the local
cache and reused while the collection is unchanged on the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, done, err := openSession(cmd.Context(), listCache)
		if err != nil {
			return err
		}
		defer done()

		objects, err := session.FetchCollection(cmd.Context(), args[0], fetchOptions(listRaw)...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, obj := range objects {
			fmt.Fprintf(out, "%s\t", obj.ID)
			if err := writePayload(out, obj, listRaw); err != nil {
				return err
			}
		}
		return nil
	},
}

func fetchOptions(raw bool) []weave.FetchOption {
	if raw {
		return []weave.FetchOption{weave.Raw()}
	}
	return nil
}

func writePayload(w io.Writer, obj *storage.Object, raw bool) error {
	payload := obj.Payload
	if !raw {
		payload = obj.Plaintext()
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func init() {
	getCmd.Flags().BoolVar(&getRaw, "raw", false, "print the envelope without decrypting")
	listCmd.Flags().BoolVar(&listRaw, "raw", false, "print envelopes without decrypting")
	listCmd.Flags().BoolVar(&listCache, "cache", false, "use the local snapshot cache")
	rootCmd.AddCommand(collectionsCmd, enginesCmd, getCmd, listCmd)
}
