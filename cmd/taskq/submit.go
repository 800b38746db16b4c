package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/taskq/client"
)

func newSubmitCmd(root *rootOptions) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <operation> <a> [b]",
		Short: "Submit an arithmetic job",
		Long: "Submit an arithmetic job. Operations: add, subtract, multiply, divide\n" +
			"(all take a and b) and increment (takes a only).",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid operand a %q: %w", args[1], err)
			}
			var opts []client.EnqueueOption
			if len(args) == 3 {
				b, err := strconv.ParseInt(args[2], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid operand b %q: %w", args[2], err)
				}
				opts = append(opts, client.Operand(b))
			}

			ctx := cmd.Context()
			c, err := root.dial(ctx, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			h, err := c.Enqueue(ctx, args[0], a, opts...)
			if err != nil {
				return err
			}
			if !wait {
				return printJSON(cmd.OutOrStdout(), h)
			}

			snap, err := c.Wait(ctx, h.JobID, interval)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the job is terminal and print its snapshot")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default: the server's advisory interval)")
	return cmd
}
