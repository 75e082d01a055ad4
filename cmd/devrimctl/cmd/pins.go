package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"devrim/internal/session"
)

var pinCmd = &cobra.Command{
	Use:   "pin <chatId> <messageId>",
	Short: "Pin a message to its chat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return togglePin(cmd, args[0], args[1], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <chatId> <messageId>",
	Short: "Unpin a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return togglePin(cmd, args[0], args[1], false)
	},
}

func togglePin(cmd *cobra.Command, chatID, messageID string, pin bool) error {
	sess, err := startSession(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer sess.Close()

	op := sess.Unpin
	if pin {
		op = sess.Pin
	}
	err = op(cmd.Context(), chatID, messageID)
	switch {
	case errors.Is(err, session.ErrInvalidReference):
		return fmt.Errorf("message %s is not part of chat %s", messageID, chatID)
	case errors.Is(err, session.ErrPinLimitReached):
		return errors.New("this chat already has the maximum number of pinned messages")
	case err != nil:
		return err
	}
	return printPins(cmd, sess, chatID)
}

func printPins(cmd *cobra.Command, sess *session.Context, chatID string) error {
	c, ok := sess.Store().Chat(chatID)
	if !ok {
		return session.ErrNotFound
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d pinned in %s\n", len(c.Pinned), session.Label(c, sess.Me().ID))
	for _, m := range c.Pinned {
		printMessage(out, m)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
}
