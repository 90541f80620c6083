package main

import (
	"fmt"
	"os"

	"chatflow-tutor/internal/render"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the conversation of the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		printer := render.NewPrinter(os.Stdout)
		conv := newConversation(printer)

		if _, err := current.sessions.Init(ctx); err != nil {
			return err
		}
		if err := conv.History().Sync(ctx); err != nil {
			return fmt.Errorf("error loading history: %w", err)
		}

		msgs := conv.Transcript().Snapshot()
		if len(msgs) == 0 {
			printer.Info(fmt.Sprintf("no messages in session %s", conv.SessionID()))
			return nil
		}
		printer.Transcript(msgs, conv.Status().Banners())
		return nil
	},
}
