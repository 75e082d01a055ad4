package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"devrim/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream pushed messages until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sess, err := startSession(ctx, true)
		if err != nil {
			return err
		}
		defer sess.Close()
		if !sess.Online() {
			return session.ErrTransportUnavailable
		}

		out := cmd.OutOrStdout()
		sess.Watch(func(u session.Update) {
			switch u.Kind {
			case session.UpdateMessage:
				fmt.Fprintf(out, "%s > ", chatLabel(sess, u.ChatID))
				printMessage(out, *u.Message)
			case session.UpdateMessageDeleted:
				fmt.Fprintf(out, "%s > message %s deleted\n", chatLabel(sess, u.ChatID), u.MessageID)
			case session.UpdateTyping:
				fmt.Fprintf(out, "%s > %s is typing\n", chatLabel(sess, u.ChatID), u.UserID)
			}
		})
		fmt.Fprintln(out, "watching for messages, ctrl-c to stop")
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if !sess.Online() {
					return session.ErrTransportUnavailable
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
