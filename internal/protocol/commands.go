// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package protocol

import (
	"context"
	"errors"

	"github.com/jerryscript-project/iotjs-vscode-extension/internal/breakpoints"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/codec"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/wire"
)

// evalResult is the tracked-request payload an Evaluate completion
// resolves to.
type evalResult struct {
	Subtype byte
	Value   string
}

// EvalHandle is returned by Evaluate and resolves once the matching
// EVAL_RESULT_END frame is processed (or the session ends first).
type EvalHandle struct {
	result chan trackedResult
}

// Wait blocks until the evaluation completes or ctx is done.
func (h *EvalHandle) Wait(ctx context.Context) (subtype byte, value string, err error) {
	select {
	case r := <-h.result:
		if r.err != nil {
			return 0, "", r.err
		}
		v := r.value.(evalResult)
		return v.Subtype, v.Value, nil
	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
}

// BacktraceHandle is returned by RequestBacktrace and resolves once the
// matching BACKTRACE_END frame is processed (or the session ends
// first).
type BacktraceHandle struct {
	result chan trackedResult
}

// Wait blocks until the backtrace completes or ctx is done.
func (h *BacktraceHandle) Wait(ctx context.Context) ([]BacktraceFrame, error) {
	select {
	case r := <-h.result:
		if r.err != nil {
			return nil, r.err
		}
		return r.value.([]BacktraceFrame), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendFireAndForget encodes a one-byte control command and submits it
// directly to the transport; fire-and-forget commands resolve as soon
// as the submit succeeds, per spec.md 4.5.
func (s *Session) sendFireAndForget(ctx context.Context, name string, frame []byte) error {
	if err := s.t.Send(ctx, frame); err != nil {
		return commandErr(name, ErrTransportSubmitFailed)
	}
	return nil
}

func (s *Session) resumeCommand(ctx context.Context, name string, tag byte, stop stopType) error {
	if err := s.checkAlive(); err != nil {
		return err
	}
	if s.lastBreakpointHit == nil {
		return commandErr(name, ErrNotHalted)
	}

	buf, err := s.cfg.Encode("B", uint64(tag))
	if err != nil {
		return commandErr(name, err)
	}
	if err := s.sendFireAndForget(ctx, name, buf); err != nil {
		return err
	}

	s.lastBreakpointHit = nil
	s.lastStopType = stop
	s.d.resume()
	return nil
}

// StepOver advances to the next statement without entering called
// functions.
func (s *Session) StepOver(ctx context.Context) error {
	return s.resumeCommand(ctx, "step-over", wire.TagNext, stopNext)
}

// StepInto advances one statement, entering a called function if any.
func (s *Session) StepInto(ctx context.Context) error {
	return s.resumeCommand(ctx, "step-into", wire.TagStep, stopStep)
}

// StepOut resumes until the current function returns.
func (s *Session) StepOut(ctx context.Context) error {
	return s.resumeCommand(ctx, "step-out", wire.TagFinish, stopFinish)
}

// Resume runs until the next active breakpoint or exception.
func (s *Session) Resume(ctx context.Context) error {
	return s.resumeCommand(ctx, "resume", wire.TagContinue, stopContinue)
}

// Pause requests that the engine halt at its next opportunity. It
// fails if the engine is already halted at a breakpoint.
func (s *Session) Pause(ctx context.Context) error {
	if err := s.checkAlive(); err != nil {
		return err
	}
	if s.lastBreakpointHit != nil {
		return commandErr("pause", ErrAlreadyHalted)
	}

	buf, err := s.cfg.Encode("B", uint64(wire.TagStop))
	if err != nil {
		return commandErr("pause", err)
	}
	if err := s.sendFireAndForget(ctx, "pause", buf); err != nil {
		return err
	}

	s.lastStopType = stopStop
	return nil
}

// fragment splits an encoded, header-prefixed payload into chunks of at
// most maxMessageSize bytes, per spec.md 4.4.4: the first chunk is the
// leading maxMessageSize bytes of payload as-is (it already carries the
// real tag and the 4-byte length header); every later chunk is built by
// prepending partTag to the next maxMessageSize-1 bytes of whatever
// payload remains, so no content byte is lost to the tag overhead.
func fragment(payload []byte, maxMessageSize int, partTag byte) [][]byte {
	if maxMessageSize <= 0 || len(payload) <= maxMessageSize {
		return [][]byte{payload}
	}

	frames := [][]byte{append([]byte{}, payload[:maxMessageSize]...)}

	rest := payload[maxMessageSize:]
	capacity := maxMessageSize - 1
	for len(rest) > 0 {
		n := capacity
		if n > len(rest) {
			n = len(rest)
		}
		chunk := make([]byte, 0, 1+n)
		chunk = append(chunk, partTag)
		chunk = append(chunk, rest[:n]...)
		frames = append(frames, chunk)
		rest = rest[n:]
	}
	return frames
}

// submitTracked enqueues a tracked request and returns the channel its
// result will arrive on.
func (s *Session) submitTracked(ctx context.Context, name string, frames [][]byte) chan trackedResult {
	req := &trackedRequest{label: name, frames: frames, result: make(chan trackedResult, 1)}
	s.queue.submit(ctx, req)
	return req.result
}

// Evaluate sends expression for evaluation in the scope of the current
// breakpoint hit. It requires the engine to be halted.
func (s *Session) Evaluate(ctx context.Context, expression string) (*EvalHandle, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}
	if s.lastBreakpointHit == nil {
		return nil, commandErr("evaluate", ErrNotHalted)
	}

	payload, err := s.buildEvalPayload(wire.EvalSubtypeEval, expression)
	if err != nil {
		return nil, commandErr("evaluate", err)
	}

	frames := fragment(payload, s.maxMessageSize, wire.TagEvalPart)
	s.evalsPending++

	result := s.submitTracked(ctx, "evaluate", frames)
	return &EvalHandle{result: result}, nil
}

// buildEvalPayload builds an EVAL-tagged, length-prefixed payload whose
// content is subtype followed by the CESU-8 encoding of text: byte 0 is
// the EVAL tag, bytes [1:5] are the u32 content length, and the content
// itself starts at byte 5.
func (s *Session) buildEvalPayload(subtype byte, text string) ([]byte, error) {
	encoded, err := codec.EncodeCESU8(text, 0)
	if err != nil {
		return nil, err
	}
	content := append([]byte{subtype}, encoded...)

	header, err := s.cfg.Encode("I", uint64(len(content)))
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, 1+len(header)+len(content))
	payload = append(payload, wire.TagEval)
	payload = append(payload, header...)
	payload = append(payload, content...)
	return payload, nil
}

// Restart aborts the current evaluation via the engine's restart
// sentinel ("r353t"). It behaves as an eval-class command but does not
// count toward evalsPending.
func (s *Session) Restart(ctx context.Context) (*EvalHandle, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}

	payload, err := s.buildEvalPayload(wire.EvalSubtypeAbort, "r353t")
	if err != nil {
		return nil, commandErr("restart", err)
	}

	frames := fragment(payload, s.maxMessageSize, wire.TagEvalPart)
	result := s.submitTracked(ctx, "restart", frames)
	return &EvalHandle{result: result}, nil
}

// SendClientSource uploads a source program while the engine is idle
// waiting for one.
func (s *Session) SendClientSource(ctx context.Context, name, source string) error {
	if err := s.checkAlive(); err != nil {
		return err
	}
	if !s.waitForSourceOn {
		return commandErr("send-client-source", ErrNotWaitingForSource)
	}

	payload, err := codec.EncodeCESU8(name+"\x00"+source, 5)
	if err != nil {
		return commandErr("send-client-source", err)
	}
	payload[0] = wire.TagClientSource
	lenBuf, err := s.cfg.Encode("I", uint64(len(payload)-5))
	if err != nil {
		return commandErr("send-client-source", err)
	}
	copy(payload[1:5], lenBuf)

	frames := fragment(payload, s.maxMessageSize, wire.TagClientSourcePart)
	for _, f := range frames {
		if err := s.sendFireAndForget(ctx, "send-client-source", f); err != nil {
			return err
		}
	}

	s.waitForSourceOn = false
	return nil
}

// SendClientSourceControl sends a source-control signal (no more
// sources, or context reset) while the engine is waiting for a source.
func (s *Session) SendClientSourceControl(ctx context.Context, code byte) error {
	if err := s.checkAlive(); err != nil {
		return err
	}
	if code != wire.NoMoreSourcesCode && code != wire.ContextResetCode {
		return commandErr("send-client-source-control", ErrInvalidControlCode)
	}

	tag := wire.TagNoMoreSources
	if code == wire.ContextResetCode {
		tag = wire.TagContextReset
	}

	buf, err := s.cfg.Encode("B", uint64(tag))
	if err != nil {
		return commandErr("send-client-source-control", err)
	}
	return s.sendFireAndForget(ctx, "send-client-source-control", buf)
}

// UpdateBreakpoint enables or disables bp with the engine.
func (s *Session) UpdateBreakpoint(ctx context.Context, bp *breakpoints.Breakpoint, enable bool) error {
	if err := s.checkAlive(); err != nil {
		return err
	}
	if err := s.model.SetActive(bp, enable); err != nil {
		switch {
		case errors.Is(err, breakpoints.ErrAlreadyActive):
			return commandErr("update-breakpoint", ErrAlreadyActive)
		case errors.Is(err, breakpoints.ErrAlreadyInactive):
			return commandErr("update-breakpoint", ErrAlreadyInactive)
		default:
			return commandErr("update-breakpoint", err)
		}
	}

	enableFlag := uint64(0)
	if enable {
		enableFlag = 1
	}
	buf, err := s.cfg.Encode("BBCI", uint64(wire.TagUpdateBreakpoint), enableFlag, bp.FuncKey, uint64(bp.Offset))
	if err != nil {
		return commandErr("update-breakpoint", err)
	}
	return s.sendFireAndForget(ctx, "update-breakpoint", buf)
}

// ExceptionConfig enables or disables stopping on uncaught exceptions.
func (s *Session) ExceptionConfig(ctx context.Context, enable bool) error {
	if err := s.checkAlive(); err != nil {
		return err
	}

	enableFlag := uint64(0)
	if enable {
		enableFlag = 1
	}
	buf, err := s.cfg.Encode("BB", uint64(wire.TagExceptionConfig), enableFlag)
	if err != nil {
		return commandErr("exception-config", err)
	}
	return s.sendFireAndForget(ctx, "exception-config", buf)
}

// RequestBacktrace requests the current call stack. It requires the
// engine to be halted.
func (s *Session) RequestBacktrace(ctx context.Context) (*BacktraceHandle, error) {
	if err := s.checkAlive(); err != nil {
		return nil, err
	}
	if s.lastBreakpointHit == nil {
		return nil, commandErr("request-backtrace", ErrNotHalted)
	}

	buf, err := s.cfg.Encode("BI", uint64(wire.TagGetBacktrace), 0)
	if err != nil {
		return nil, commandErr("request-backtrace", err)
	}

	result := s.submitTracked(ctx, "request-backtrace", [][]byte{buf})
	return &BacktraceHandle{result: result}, nil
}
