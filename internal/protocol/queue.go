// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package protocol

import (
	"context"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// trackedResult is what a tracked request resolves to: either its
// typed payload or an error. Kind-specific fields are stored as `any`
// and cast back by the caller, since a session-level queue has no
// business knowing eval result shapes from backtrace result shapes.
type trackedResult struct {
	value any
	err   error
}

// trackedRequest is one outstanding eval or backtrace request: its
// pre-fragmented wire bytes (submitted one at a time in order), and
// the channel its result is delivered on.
type trackedRequest struct {
	label  string
	frames [][]byte
	result chan trackedResult
}

// requestQueue implements spec.md 4.5: at most one tracked request in
// flight, a FIFO of pending tracked requests, and a submit-failure rule
// that fails only the request being submitted without draining the
// rest of the queue. It has no timeout of its own.
//
// requestQueue is not safe for concurrent use and carries no lock;
// Session, which has no lock either, is its only user.
type requestQueue struct {
	inFlight *trackedRequest
	pending  *linkedlistqueue.Queue
	send     func(ctx context.Context, frame []byte) error
}

func newRequestQueue(send func(ctx context.Context, frame []byte) error) *requestQueue {
	return &requestQueue{
		pending: linkedlistqueue.New(),
		send:    send,
	}
}

// submit enqueues req. If no tracked request is currently in flight, it
// is sent immediately (all of its frames, in order); otherwise it waits
// in the FIFO until the current in-flight request completes.
func (q *requestQueue) submit(ctx context.Context, req *trackedRequest) {
	if q.inFlight == nil {
		q.dispatch(ctx, req)
		return
	}
	q.pending.Enqueue(req)
}

// dispatch sends every frame of req and, on success, marks it in
// flight. A submit failure resolves req's result immediately with
// ErrTransportSubmitFailed and leaves the queue exactly as it was
// (no request left in flight, pending queue untouched).
func (q *requestQueue) dispatch(ctx context.Context, req *trackedRequest) {
	for _, frame := range req.frames {
		if err := q.send(ctx, frame); err != nil {
			req.result <- trackedResult{err: commandErr(req.label, ErrTransportSubmitFailed)}
			return
		}
	}
	q.inFlight = req
}

// complete resolves the in-flight request with result and, if the
// pending FIFO is non-empty, dispatches its head. A dispatch failure
// for that head fails only that request, per spec.md 4.5; it does not
// advance further into the queue on this call.
func (q *requestQueue) complete(ctx context.Context, result trackedResult) {
	if q.inFlight == nil {
		return
	}
	done := q.inFlight
	q.inFlight = nil
	done.result <- result

	if next, ok := q.pending.Dequeue(); ok {
		q.dispatch(ctx, next.(*trackedRequest))
	}
}

// failAll resolves the in-flight request and every pending request with
// err, per spec.md 7's transport-error handling: all pending
// completions fail once the transport closes.
func (q *requestQueue) failAll(err error) {
	if q.inFlight != nil {
		q.inFlight.result <- trackedResult{err: err}
		q.inFlight = nil
	}
	for !q.pending.Empty() {
		next, _ := q.pending.Dequeue()
		next.(*trackedRequest).result <- trackedResult{err: err}
	}
}
