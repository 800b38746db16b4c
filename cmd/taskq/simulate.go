package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/taskq/client"
	"github.com/xraph/taskq/engine"
	"github.com/xraph/taskq/job"
)

// jobClient is the part of the client the simulation drives.
type jobClient interface {
	Enqueue(ctx context.Context, operation string, a int64, opts ...client.EnqueueOption) (*engine.Handle, error)
	Status(ctx context.Context, jobID string) (*engine.Snapshot, error)
}

type simJob struct {
	op string
	a  int64
	b  *int64
}

func operand(v int64) *int64 { return &v }

var simulatedJobs = []simJob{
	{"add", 2, operand(3)},
	{"subtract", 10, operand(4)},
	{"multiply", 6, operand(7)},
	{"divide", 8, operand(2)},
	{"increment", 5, nil},
}

type pollRow struct {
	n          int
	status     string
	result     string
	exception  string
	finishedAt string
	expiresIn  string
}

type simResult struct {
	job      simJob
	jobID    string
	polls    []pollRow
	status   string
	result   string
	errText  string
	duration time.Duration
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	var (
		maxPolls int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Submit one job per operation concurrently and poll them to completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := root.dial(ctx, cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			results, err := simulate(ctx, c, simulatedJobs, maxPolls, interval)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().IntVar(&maxPolls, "polls", 20, "maximum polls per job")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default: the server's advisory interval)")
	return cmd
}

// simulate submits every job concurrently and polls each until it is
// terminal or maxPolls is reached. Per-job failures are reported in the
// results; only context cancellation aborts the run.
func simulate(ctx context.Context, c jobClient, jobs []simJob, maxPolls int, interval time.Duration) ([]simResult, error) {
	results := make([]simResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)

	for i, sj := range jobs {
		g.Go(func() error {
			results[i] = runJob(gctx, c, sj, maxPolls, interval)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func runJob(ctx context.Context, c jobClient, sj simJob, maxPolls int, interval time.Duration) simResult {
	start := time.Now()
	res := simResult{job: sj, status: "failed", result: "-", errText: "-"}

	var opts []client.EnqueueOption
	if sj.b != nil {
		opts = append(opts, client.Operand(*sj.b))
	}
	h, err := c.Enqueue(ctx, sj.op, sj.a, opts...)
	if err != nil {
		res.errText = "request failed: " + err.Error()
		res.duration = time.Since(start)
		return res
	}
	res.jobID = h.JobID

	wait := interval
	if wait <= 0 {
		wait = time.Duration(h.PollIntervalSeconds) * time.Second
	}

	res.status = "timeout"
	for n := 1; n <= maxPolls; n++ {
		snap, err := c.Status(ctx, h.JobID)
		if err != nil {
			res.polls = append(res.polls, pollRow{n: n, status: "error", result: "-", exception: err.Error(), finishedAt: "-", expiresIn: "-"})
		} else {
			row := snapshotRow(n, snap)
			res.polls = append(res.polls, row)

			switch snap.Status {
			case job.StateFinished:
				res.status, res.result = "finished", row.result
			case job.StateFailed, job.StateStopped:
				res.status, res.errText = "failed", row.exception
			case job.StateQueued, job.StateStarted:
			}
			if snap.Status.Terminal() {
				break
			}
		}

		if n == maxPolls {
			break
		}
		select {
		case <-ctx.Done():
			res.duration = time.Since(start)
			return res
		case <-time.After(wait):
		}
	}

	res.duration = time.Since(start)
	return res
}

func snapshotRow(n int, snap *engine.Snapshot) pollRow {
	row := pollRow{n: n, status: string(snap.Status), result: "-", exception: "-", finishedAt: "-", expiresIn: "-"}
	if len(snap.Result) > 0 && string(snap.Result) != "null" {
		row.result = string(snap.Result)
	}
	if snap.Exception != nil {
		row.exception = *snap.Exception
	}
	if snap.FinishedAt != nil {
		row.finishedAt = snap.FinishedAt.Format(time.RFC3339)
	}
	if snap.ResultExpiresInSeconds != nil {
		row.expiresIn = fmt.Sprint(*snap.ResultExpiresInSeconds)
	}
	return row
}

// report prints a poll table per job followed by a summary table.
func report(w io.Writer, results []simResult) error {
	for _, r := range results {
		b := "-"
		if r.job.b != nil {
			b = fmt.Sprint(*r.job.b)
		}
		fmt.Fprintf(w, "── %s [a=%d, b=%s] job %s\n", strings.ToUpper(r.job.op), r.job.a, b, r.jobID)

		if len(r.polls) > 0 {
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "POLL\tSTATUS\tRESULT\tEXCEPTION\tFINISHED AT\tEXPIRES IN (S)")
			for _, p := range r.polls {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.n, p.status, p.result, p.exception, p.finishedAt, p.expiresIn)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}

		switch r.status {
		case "finished":
			fmt.Fprintf(w, "%s result: %s\n\n", strings.ToUpper(r.job.op), r.result)
		case "failed":
			fmt.Fprintf(w, "%s failed: %s\n\n", strings.ToUpper(r.job.op), r.errText)
		default:
			fmt.Fprintf(w, "%s job did not finish in time.\n\n", strings.ToUpper(r.job.op))
		}
	}

	fmt.Fprintln(w, "── Summary")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tSTATUS\tRESULT\tDURATION (S)\tEXCEPTION")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", r.job.op, r.status, r.result, r.duration.Seconds(), r.errText)
	}
	return tw.Flush()
}
