package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"agenda/internal/cli"
)

func newChatCmd() *cobra.Command {
	var (
		user           string
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			out := cli.NewStreamingWriter(cmd.OutOrStdout())
			out.SetColorMode(!noColor && !a.cfg.Log.NoColor)

			if conversationID == "" {
				conv, err := a.store.CreateConversation(ctx, user, "")
				if err != nil {
					return err
				}
				conversationID = conv.ID
				out.WriteColored(fmt.Sprintf("conversation %s\n", conversationID), cli.ColorGray)
			}

			if _, err := a.chat.Post(ctx, user, conversationID, strings.Join(args, " ")); err != nil {
				return err
			}

			reply, err := a.chat.Reply(ctx, user, conversationID, out)
			if err != nil {
				return err
			}
			if out.Written() == 0 {
				out.WriteLine(reply.Message.Content)
			} else {
				out.WriteLine("")
			}
			if reply.Exhausted {
				out.WriteColored("round limit reached before a final answer\n", cli.ColorYellow)
			}
			out.Flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "local", "Acting user id")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Existing conversation id (default: start a new one)")
	return cmd
}
