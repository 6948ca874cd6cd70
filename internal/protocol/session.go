// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package protocol implements the client side of the JerryScript remote
// debugger wire protocol: the state machine that turns inbound frames
// into breakpoints.Model mutations and Delegate callbacks, and turns
// façade command calls into outbound frames.
package protocol

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/breakpoints"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/codec"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/transport"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/wire"
)

// stopType mirrors the tag of the command that caused the current halt,
// used to label the next BREAKPOINT_HIT/EXCEPTION_HIT for the façade.
// stopNone means the engine has not yet run (the initial "entry" halt).
type stopType byte

const stopNone stopType = 0

// Session is the protocol handler (C4): it owns a breakpoints.Model, a
// transport.Transport, the handshake-negotiated codec.ByteConfig, the
// reassembly buffers for multi-frame text fields, and the tracked
// request queue for eval/backtrace completions.
//
// Session carries no internal locking: per spec.md 5, the core is a
// single-threaded cooperative reactor that mutates its state only in
// response to a frame from Run's driver loop or a command call from
// the façade, and the façade is expected to serialize those two
// sources itself (exactly one goroutine — e.g. internal/commands'
// runSession — drives Run and issues every command call). Calling a
// Session method concurrently with another is not supported. Delegate
// callbacks are invoked synchronously from within that same call, so
// they must not call back into the Session that invoked them.
type Session struct {
	log logr.Logger
	t   transport.Transport
	d   Delegate

	maxMessageSize int

	handshakeDone bool
	cfg           codec.ByteConfig

	model *breakpoints.Model

	sourceBytes       []byte
	sourceNameBytes   []byte
	functionNameBytes []byte
	exceptionBytes    []byte
	evalResultBytes   []byte

	// pendingFunctionName is consumed (and reset to "") by the next
	// PARSE_FUNCTION frame, per spec.md 9's resolved ambiguity.
	pendingFunctionName string
	// pendingSourceName is the source name decoded so far for the
	// script currently being assembled; consumed by SOURCE_CODE_END.
	pendingSourceName string

	lastBreakpointHit *breakpoints.Breakpoint
	lastStopType      stopType
	waitForSourceOn   bool
	evalsPending      int

	backtraceAccum []BacktraceFrame

	queue *requestQueue

	ended    bool
	endedErr error
}

// NewSession creates a Session driven by t and reporting to d. HandleFrame
// rejects every inbound frame other than CONFIGURATION until the
// handshake has been processed; the command methods do not check for
// it.
func NewSession(t transport.Transport, d Delegate, log logr.Logger) *Session {
	s := &Session{
		log:   log,
		t:     t,
		d:     d,
		model: breakpoints.NewModel(),
	}
	s.queue = newRequestQueue(t.Send)
	return s
}

// Run reads frames from the transport and feeds them to HandleFrame
// until the transport closes or ctx is done. It is the session's
// driver loop: the caller must not call HandleFrame or any command
// method from another goroutine while Run is executing.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.fail(ctx.Err())
			return ctx.Err()
		case <-s.t.Closed():
			err := commandErr("transport", ErrTransportSubmitFailed)
			s.fail(err)
			return err
		case frame, ok := <-s.t.Frames():
			if !ok {
				return nil
			}
			if err := s.HandleFrame(ctx, frame); err != nil {
				if IsFatalError(err) {
					s.fail(err)
					return err
				}
				s.log.V(1).Info("dropping frame after non-fatal error", "error", err)
			}
		}
	}
}

// fail ends the session: every pending and in-flight tracked request is
// failed, OnError fires with code 0 for a fatal protocol error and code
// -1 for any other cause (transport closed, ctx done), and further
// commands are rejected.
func (s *Session) fail(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.endedErr = err
	s.queue.failAll(err)

	if fe, ok := err.(*FatalError); ok {
		s.d.error(0, fe.Message)
	} else {
		s.d.error(-1, err.Error())
	}
}

// MaxMessageSize returns the max_message_size negotiated by the
// CONFIGURATION handshake, or 0 before the handshake completes.
func (s *Session) MaxMessageSize() int {
	return s.maxMessageSize
}

// Model returns the breakpoint/script model this session maintains, for
// façade code that needs to resolve a file:line into a Breakpoint
// before calling UpdateBreakpoint.
func (s *Session) Model() *breakpoints.Model {
	return s.model
}

// checkAlive returns endedErr if the session has already ended.
func (s *Session) checkAlive() error {
	if s.ended {
		return s.endedErr
	}
	return nil
}

// HandleFrame processes one inbound logical frame. It must be called
// with frames in arrival order (Run does this automatically); calling
// it out of order or concurrently with itself violates spec.md 5's
// ordering guarantee and is not supported.
func (s *Session) HandleFrame(ctx context.Context, frame []byte) error {
	if err := s.checkAlive(); err != nil {
		return err
	}

	if len(frame) == 0 {
		return fatalf("empty frame")
	}
	tag := frame[0]

	if !s.handshakeDone {
		if tag != wire.TagConfiguration {
			return fatalf("first frame must be CONFIGURATION, got tag %d", tag)
		}
		return s.handleConfiguration(frame)
	}

	if s.evalsPending > 0 && breakpoints.EvalsPendingGate(tagKind(tag)) {
		s.log.V(2).Info("debouncing frame while evals pending", "tag", tag)
		return nil
	}

	switch tag {
	case wire.TagSourceCode:
		s.ensureTopLevelFrame()
		s.sourceBytes = append(s.sourceBytes, frame[1:]...)
		return nil
	case wire.TagSourceCodeEnd:
		return s.handleSourceCodeEnd(frame)
	case wire.TagSourceCodeName:
		s.sourceNameBytes = append(s.sourceNameBytes, frame[1:]...)
		return nil
	case wire.TagSourceCodeNameEnd:
		s.sourceNameBytes = append(s.sourceNameBytes, frame[1:]...)
		name, err := codec.DecodeCESU8(s.sourceNameBytes)
		if err != nil {
			return fatalf("decoding source name: %v", err)
		}
		s.pendingSourceName = name
		s.sourceNameBytes = nil
		return nil
	case wire.TagFunctionName:
		s.functionNameBytes = append(s.functionNameBytes, frame[1:]...)
		return nil
	case wire.TagFunctionNameEnd:
		s.functionNameBytes = append(s.functionNameBytes, frame[1:]...)
		name, err := codec.DecodeCESU8(s.functionNameBytes)
		if err != nil {
			return fatalf("decoding function name: %v", err)
		}
		s.pendingFunctionName = name
		s.functionNameBytes = nil
		return nil
	case wire.TagParseFunction:
		return s.handleParseFunction(frame)
	case wire.TagBreakpointList:
		return s.handleBreakpointList(frame, true)
	case wire.TagBreakpointOffsetList:
		return s.handleBreakpointList(frame, false)
	case wire.TagByteCodeCP:
		return s.handleByteCodeCP(frame)
	case wire.TagReleaseByteCodeCP:
		return s.handleReleaseByteCodeCP(ctx, frame)
	case wire.TagBreakpointHit:
		return s.handleHit(frame, false)
	case wire.TagExceptionHit:
		return s.handleHit(frame, true)
	case wire.TagExceptionStr:
		s.exceptionBytes = append(s.exceptionBytes, frame[1:]...)
		return nil
	case wire.TagExceptionStrEnd:
		s.exceptionBytes = append(s.exceptionBytes, frame[1:]...)
		return nil // decoded lazily at the next exception hit
	case wire.TagBacktrace:
		return s.handleBacktraceFrame(frame)
	case wire.TagBacktraceEnd:
		return s.handleBacktraceEnd(ctx, frame)
	case wire.TagEvalResult:
		s.evalResultBytes = append(s.evalResultBytes, frame[1:]...)
		return nil
	case wire.TagEvalResultEnd:
		return s.handleEvalResultEnd(ctx, frame)
	case wire.TagWaitForSource:
		s.waitForSourceOn = true
		s.d.waitForSource()
		return nil
	default:
		return fatalf("unknown tag %d", tag)
	}
}

// tagKind maps a tag byte to the debounce-gate name
// breakpoints.EvalsPendingGate recognizes.
func tagKind(tag byte) string {
	switch tag {
	case wire.TagSourceCodeEnd:
		return "SOURCE_CODE_END"
	case wire.TagBreakpointList, wire.TagBreakpointOffsetList:
		return "BREAKPOINT_LIST"
	case wire.TagByteCodeCP:
		return "BYTE_CODE_CP"
	case wire.TagReleaseByteCodeCP:
		return "RELEASE_BYTE_CODE_CP"
	default:
		return ""
	}
}

func (s *Session) handleConfiguration(frame []byte) error {
	if len(frame) < wire.ConfigurationFrameSize {
		return fatalf("CONFIGURATION frame too short: %d bytes", len(frame))
	}

	maxMessageSize := int(frame[1])
	cpointerSize := int(frame[2])
	littleEndian := frame[3] != 0
	version := frame[4]

	if cpointerSize != 2 && cpointerSize != 4 {
		return fatalf("invalid compressed pointer size %d", cpointerSize)
	}
	if version != wire.ProtocolVersion {
		return fatalf("protocol version mismatch: got %d, want %d", version, wire.ProtocolVersion)
	}

	s.cfg = codec.ByteConfig{CPointerSize: cpointerSize, LittleEndian: littleEndian}
	s.maxMessageSize = maxMessageSize
	s.handshakeDone = true
	return nil
}
