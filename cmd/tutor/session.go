package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	sessionCmd.Flags().Bool("rotate", false, "discard the current session and start a new one")
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rotate, err := cmd.Flags().GetBool("rotate")
		if err != nil {
			return err
		}

		s, err := current.sessions.Init(ctx)
		if err != nil {
			return err
		}
		if rotate {
			if s, err = current.sessions.Rotate(ctx); err != nil {
				return err
			}
		}

		expires := s.CreatedAt.Add(current.cfg.SessionTTL)
		fmt.Fprintf(cmd.OutOrStdout(), "session:  %s\n", s.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "created:  %s (%s)\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(s.CreatedAt))
		fmt.Fprintf(cmd.OutOrStdout(), "expires:  %s (%s)\n", expires.Local().Format("2006-01-02 15:04:05"), humanize.Time(expires))
		return nil
	},
}
