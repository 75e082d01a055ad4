package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"devrim/internal/app/dto"
	"devrim/internal/session"
)

var openCmd = &cobra.Command{
	Use:   "open <chatId>",
	Short: "Print the latest messages and pins of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.Open(cmd.Context(), args[0]); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", chatLabel(sess, args[0]))
		for _, m := range sess.Messages() {
			printMessage(out, m)
		}
		if c, ok := sess.Current(); ok && len(c.Pinned) > 0 {
			fmt.Fprintln(out, "\npinned:")
			for _, m := range c.Pinned {
				printMessage(out, m)
			}
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <chatId> <text>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer sess.Close()

		m, err := sess.SendTo(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), m.ID)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <chatId> <messageId>",
	Short: "Delete a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.Open(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := sess.DeleteMessage(cmd.Context(), args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[1])
		return nil
	},
}

func printMessage(w io.Writer, m dto.Message) {
	fmt.Fprintf(w, "[%s] %s: %s  (%s)\n", m.CreatedAt.Local().Format(time.TimeOnly), m.Sender.Name, m.Content, m.ID)
}

func chatLabel(sess *session.Context, chatID string) string {
	c, ok := sess.Store().Chat(chatID)
	if !ok {
		return chatID
	}
	return session.Label(c, sess.Me().ID)
}

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(rmCmd)
}
