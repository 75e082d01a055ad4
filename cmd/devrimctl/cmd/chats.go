package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List chats, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer sess.Close()

		entries := sess.Directory()
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No chats yet")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCHAT\tUPDATED\tLATEST")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ChatID, e.Label, e.LastActivity.Local().Format(time.DateTime), e.Preview)
		}
		return w.Flush()
	},
}

var startCmd = &cobra.Command{
	Use:   "start <userId>",
	Short: "Find or create the one-to-one chat with a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer sess.Close()

		c, err := sess.Access(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, chatLabel(sess, c.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(startCmd)
}
