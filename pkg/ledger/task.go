package ledger

import (
	"context"
	"fmt"
	"sync/atomic"
)

// TaskState is the lifecycle state of a Task.
type TaskState int32

const (
	Pending TaskState = iota
	Fulfilled
	Rejected
)

func (s TaskState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// Task is one in-flight request started by an Async method.
//
// A Task settles exactly once, moving from Pending to Fulfilled (body
// available) or Rejected (error available).
type Task struct {
	req    Request
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32

	// body and err are written once before done is closed.
	body []byte
	err  error
}

func startTask(ctx context.Context, req Request, run func(context.Context, Request) ([]byte, error)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer cancel()
		body, err := run(ctx, req)
		t.settle(body, err)
	}()
	return t
}

func (t *Task) settle(body []byte, err error) {
	t.body, t.err = body, err
	if err != nil {
		t.state.Store(int32(Rejected))
	} else {
		t.state.Store(int32(Fulfilled))
	}
	close(t.done)
}

// Wait blocks until the task settles or ctx is done. A settled task always
// returns its result, even to a ctx that is already done. A ctx that ends
// first returns ctx.Err() and leaves the task running; use Cancel to abort it.
func (t *Task) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
		return t.body, t.err
	default:
	}
	select {
	case <-t.done:
		return t.body, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel aborts the request. A task that has not settled yet is rejected
// with an error wrapping context.Canceled. Cancel is safe to call more than
// once and after settlement.
func (t *Task) Cancel() {
	t.cancel()
}

// Done returns a channel that is closed when the task settles.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// State returns the current state without blocking.
func (t *Task) State() TaskState {
	return TaskState(t.state.Load())
}

// Request returns the descriptor the task was started with.
func (t *Task) Request() Request {
	return t.req
}
