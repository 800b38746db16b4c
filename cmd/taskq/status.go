package main

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job snapshot or its execution history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := root.dial(ctx, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if history {
				hist, err := c.History(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), hist)
			}

			snap, err := c.Status(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "show recent execution attempts instead of the snapshot")
	return cmd
}
