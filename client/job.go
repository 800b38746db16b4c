package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/taskq/dwp"
	"github.com/xraph/taskq/engine"
)

// EnqueueOption configures an enqueue request.
type EnqueueOption func(*dwp.JobEnqueueRequest)

// Operand sets the second operand b. Binary operations require it.
func Operand(b int64) EnqueueOption {
	return func(r *dwp.JobEnqueueRequest) { r.B = &b }
}

// Enqueue submits a job. An empty operation means add.
func (c *Client) Enqueue(ctx context.Context, operation string, a int64, opts ...EnqueueOption) (*engine.Handle, error) {
	req := dwp.JobEnqueueRequest{Operation: operation, A: &a}
	for _, opt := range opts {
		opt(&req)
	}

	var h engine.Handle
	if err := c.call(ctx, dwp.MethodJobEnqueue, req, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Status returns the current snapshot of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*engine.Snapshot, error) {
	var snap engine.Snapshot
	if err := c.call(ctx, dwp.MethodJobGet, dwp.JobGetRequest{JobID: jobID}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// History returns a job's recent execution attempts.
func (c *Client) History(ctx context.Context, jobID string) (*engine.History, error) {
	var hist engine.History
	if err := c.call(ctx, dwp.MethodJobHistory, dwp.JobGetRequest{JobID: jobID}, &hist); err != nil {
		return nil, err
	}
	return &hist, nil
}

// QueueCount returns the number of jobs waiting on the pending queue.
func (c *Client) QueueCount(ctx context.Context) (int64, error) {
	var resp dwp.QueueCountResponse
	if err := c.call(ctx, dwp.MethodQueueCount, struct{}{}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Wait polls a job until it reaches a terminal state or ctx ends. A
// non-positive interval uses the poll interval advertised by the server.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration) (*engine.Snapshot, error) {
	for {
		snap, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if snap.Status.Terminal() {
			return snap, nil
		}

		d := interval
		if d <= 0 {
			d = time.Duration(snap.PollIntervalSeconds) * time.Second
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-time.After(d):
		}
	}
}

func (c *Client) call(ctx context.Context, method string, req, out any) error {
	resp, err := c.request(ctx, method, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", method, err)
	}
	return nil
}
