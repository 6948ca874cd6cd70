// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrackedRequest(label string, frames ...[]byte) *trackedRequest {
	return &trackedRequest{label: label, frames: frames, result: make(chan trackedResult, 1)}
}

func TestRequestQueue_SubmitDispatchesImmediatelyWhenIdle(t *testing.T) {
	t.Parallel()

	var sent [][]byte
	q := newRequestQueue(func(ctx context.Context, frame []byte) error {
		sent = append(sent, frame)
		return nil
	})

	req := newTrackedRequest("a", []byte{1}, []byte{2})
	q.submit(context.Background(), req)

	assert.Equal(t, [][]byte{{1}, {2}}, sent)
	assert.Same(t, req, q.inFlight)
}

func TestRequestQueue_SecondSubmitWaitsForCompletion(t *testing.T) {
	t.Parallel()

	var sent [][]byte
	q := newRequestQueue(func(ctx context.Context, frame []byte) error {
		sent = append(sent, frame)
		return nil
	})

	first := newTrackedRequest("first", []byte{1})
	second := newTrackedRequest("second", []byte{2})

	q.submit(context.Background(), first)
	q.submit(context.Background(), second)

	assert.Equal(t, [][]byte{{1}}, sent, "second request's frame must not be sent while first is in flight")
	assert.Same(t, first, q.inFlight)

	q.complete(context.Background(), trackedResult{value: "first-done"})

	select {
	case r := <-first.result:
		assert.Equal(t, "first-done", r.value)
	default:
		t.Fatal("first request never resolved")
	}

	assert.Equal(t, [][]byte{{1}, {2}}, sent, "completing first must dispatch second")
	assert.Same(t, second, q.inFlight)
}

func TestRequestQueue_SubmitFailureDoesNotMarkInFlight(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	q := newRequestQueue(func(ctx context.Context, frame []byte) error {
		return boom
	})

	req := newTrackedRequest("failing", []byte{1})
	q.submit(context.Background(), req)

	require.Nil(t, q.inFlight)
	select {
	case r := <-req.result:
		require.Error(t, r.err)
		assert.True(t, IsCommandError(r.err))
	default:
		t.Fatal("failing request never resolved")
	}
}

func TestRequestQueue_QueuedDispatchFailureFailsOnlyThatRequestAndStopsAdvancing(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	q := newRequestQueue(func(ctx context.Context, frame []byte) error {
		calls++
		if calls == 1 {
			return nil // first request's frame succeeds, marking it in flight
		}
		return boom // second request's dispatch (triggered by complete) fails
	})

	first := newTrackedRequest("first", []byte{1})
	second := newTrackedRequest("second", []byte{2})
	third := newTrackedRequest("third", []byte{3})

	q.submit(context.Background(), first)
	q.submit(context.Background(), second)
	q.submit(context.Background(), third)

	require.Same(t, first, q.inFlight)

	q.complete(context.Background(), trackedResult{value: "first-done"})

	// second's dispatch failed, so nothing is in flight and third is
	// left untouched in the pending queue rather than being advanced
	// into automatically.
	assert.Nil(t, q.inFlight)

	select {
	case r := <-second.result:
		require.Error(t, r.err)
	default:
		t.Fatal("second request never resolved")
	}

	select {
	case <-third.result:
		t.Fatal("third request must not resolve until explicitly completed or failed")
	default:
	}

	assert.Equal(t, 1, q.pending.Size())
}

func TestRequestQueue_FailAllResolvesInFlightAndEveryPending(t *testing.T) {
	t.Parallel()

	q := newRequestQueue(func(ctx context.Context, frame []byte) error {
		return nil
	})

	first := newTrackedRequest("first", []byte{1})
	second := newTrackedRequest("second", []byte{2})
	third := newTrackedRequest("third", []byte{3})

	q.submit(context.Background(), first)
	q.submit(context.Background(), second)
	q.submit(context.Background(), third)

	sentinel := errors.New("transport closed")
	q.failAll(sentinel)

	for _, req := range []*trackedRequest{first, second, third} {
		select {
		case r := <-req.result:
			assert.ErrorIs(t, r.err, sentinel)
		default:
			t.Fatalf("%s never resolved by failAll", req.label)
		}
	}

	assert.Nil(t, q.inFlight)
	assert.True(t, q.pending.Empty())
}
