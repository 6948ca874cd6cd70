// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package protocol

import (
	"context"
	"strings"

	"github.com/jerryscript-project/iotjs-vscode-extension/internal/breakpoints"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/codec"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/wire"
)

const (
	stopStep     = stopType(wire.TagStep)
	stopNext     = stopType(wire.TagNext)
	stopFinish   = stopType(wire.TagFinish)
	stopContinue = stopType(wire.TagContinue)
	stopStop     = stopType(wire.TagStop)
)

// stopLabel renders the "<inactive? >breakpoint (<kind>)" string
// spec.md 4.4.3 describes, from the command that caused the current
// halt and whether the resolved breakpoint is active.
func (s *Session) stopLabel(bp *breakpoints.Breakpoint) string {
	var kind string
	switch s.lastStopType {
	case stopStep:
		kind = "step-in"
	case stopNext:
		kind = "step"
	case stopFinish:
		kind = "step-out"
	case stopContinue:
		kind = "continue"
	case stopStop:
		kind = "pause"
	default:
		kind = "entry"
	}

	if bp != nil && !bp.IsActive() {
		return "inactive breakpoint (" + kind + ")"
	}
	return "breakpoint (" + kind + ")"
}

// ensureTopLevelFrame synthesizes a top-level (non-function) parser
// frame the first time source bytes arrive for a script with no frame
// already open, per spec.md 4.4.2.
func (s *Session) ensureTopLevelFrame() {
	if !s.model.HasOpenFrame() {
		s.model.PushFrame(false, 1, 1, "", s.pendingSourceName)
	}
}

func (s *Session) handleSourceCodeEnd(frame []byte) error {
	s.ensureTopLevelFrame()
	s.sourceBytes = append(s.sourceBytes, frame[1:]...)

	source, err := codec.DecodeCESU8(s.sourceBytes)
	if err != nil {
		return fatalf("decoding source: %v", err)
	}
	s.sourceBytes = nil

	script := s.model.AddScript(s.pendingSourceName, source)
	s.pendingSourceName = ""

	s.d.scriptParsed(ScriptParsedEvent{ID: script.ID, Name: script.Name, LineCount: script.LineCount})
	return nil
}

func (s *Session) handleParseFunction(frame []byte) error {
	values, err := s.cfg.Decode("II", frame, 1)
	if err != nil {
		return fatalf("decoding PARSE_FUNCTION: %v", err)
	}

	name := s.pendingFunctionName
	s.pendingFunctionName = ""

	s.model.PushFrame(true, uint32(values[0]), uint32(values[1]), name, s.pendingSourceName)
	return nil
}

func (s *Session) handleBreakpointList(frame []byte, isLines bool) error {
	body := frame[1:]
	if len(body) == 0 || len(body)%4 != 0 {
		return fatalf("malformed breakpoint list length %d", len(body))
	}

	k := len(body) / 4
	values, err := s.cfg.Decode(strings.Repeat("I", k), body, 0)
	if err != nil {
		return fatalf("decoding breakpoint list: %v", err)
	}

	entries := make([]uint32, k)
	for i, v := range values {
		entries[i] = uint32(v)
	}

	var appendErr error
	if isLines {
		appendErr = s.model.AppendBreakpointLines(entries)
	} else {
		appendErr = s.model.AppendBreakpointOffsets(entries)
	}
	if appendErr != nil {
		return fatalf("%v", appendErr)
	}
	return nil
}

func (s *Session) handleByteCodeCP(frame []byte) error {
	values, err := s.cfg.Decode("C", frame, 1)
	if err != nil {
		return fatalf("decoding BYTE_CODE_CP: %v", err)
	}
	if _, err := s.model.PopFrame(values[0]); err != nil {
		return fatalf("%v", err)
	}
	return nil
}

func (s *Session) handleReleaseByteCodeCP(ctx context.Context, frame []byte) error {
	values, err := s.cfg.Decode("C", frame, 1)
	if err != nil {
		return fatalf("decoding RELEASE_BYTE_CODE_CP: %v", err)
	}
	s.model.Release(values[0])

	ack := append([]byte{}, frame...)
	ack[0] = wire.TagFreeByteCodeCP
	if err := s.t.Send(ctx, ack); err != nil {
		s.log.V(1).Info("failed to acknowledge RELEASE_BYTE_CODE_CP", "error", err)
	}
	return nil
}

func (s *Session) handleHit(frame []byte, isException bool) error {
	values, err := s.cfg.Decode("CI", frame, 1)
	if err != nil {
		return fatalf("decoding hit: %v", err)
	}
	byteCodeCP, offset := values[0], uint32(values[1])

	res, err := s.model.ResolveHit(byteCodeCP, offset)
	if err != nil {
		return fatalf("resolving hit: %v", err)
	}

	s.lastBreakpointHit = res.Breakpoint
	label := s.stopLabel(res.Breakpoint)
	s.lastStopType = stopNone

	if isException {
		message, err := codec.DecodeCESU8(s.exceptionBytes)
		if err != nil {
			return fatalf("decoding exception message: %v", err)
		}
		s.exceptionBytes = nil
		s.d.exceptionHit(ExceptionHitEvent{Breakpoint: res.Breakpoint, Exact: res.Exact, Message: message})
		return nil
	}

	s.d.breakpointHit(BreakpointHitEvent{Breakpoint: res.Breakpoint, Exact: res.Exact, StopLabel: label})
	return nil
}

func (s *Session) decodeBacktraceEntry(frame []byte) (*BacktraceFrame, error) {
	if len(frame) == 1 {
		return nil, nil
	}
	values, err := s.cfg.Decode("CI", frame, 1)
	if err != nil {
		return nil, err
	}
	byteCodeCP, offset := values[0], uint32(values[1])

	res, err := s.model.ResolveHit(byteCodeCP, offset)
	if err != nil {
		return nil, err
	}
	return &BacktraceFrame{Breakpoint: res.Breakpoint, ByteCodeCP: byteCodeCP, Offset: offset}, nil
}

func (s *Session) handleBacktraceFrame(frame []byte) error {
	entry, err := s.decodeBacktraceEntry(frame)
	if err != nil {
		return fatalf("decoding backtrace frame: %v", err)
	}
	if entry != nil {
		s.backtraceAccum = append(s.backtraceAccum, *entry)
	}
	return nil
}

func (s *Session) handleBacktraceEnd(ctx context.Context, frame []byte) error {
	entry, err := s.decodeBacktraceEntry(frame)
	if err != nil {
		return fatalf("decoding backtrace end: %v", err)
	}
	if entry != nil {
		s.backtraceAccum = append(s.backtraceAccum, *entry)
	}

	result := s.backtraceAccum
	s.backtraceAccum = nil

	s.d.backtrace(result)
	s.queue.complete(ctx, trackedResult{value: result})
	return nil
}

func (s *Session) handleEvalResultEnd(ctx context.Context, frame []byte) error {
	s.evalResultBytes = append(s.evalResultBytes, frame[1:]...)
	if len(s.evalResultBytes) == 0 {
		return fatalf("EVAL_RESULT_END with no payload")
	}

	subtype := s.evalResultBytes[len(s.evalResultBytes)-1]
	value, err := codec.DecodeCESU8(s.evalResultBytes[:len(s.evalResultBytes)-1])
	if err != nil {
		return fatalf("decoding eval result: %v", err)
	}
	s.evalResultBytes = nil

	if s.evalsPending > 0 {
		s.evalsPending--
	}

	s.d.evalResult(subtype, value)
	s.queue.complete(ctx, trackedResult{value: evalResult{Subtype: subtype, Value: value}})
	return nil
}
