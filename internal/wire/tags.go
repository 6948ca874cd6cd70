// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package wire pins the numeric tag values of the JerryScript remote
// debugger wire protocol. This is a compatibility surface shared with
// the engine; the values must not be renumbered independently of the
// engine's own protocol header.
package wire

// ProtocolVersion is the compile-time protocol version this client
// speaks. A CONFIGURATION frame whose version byte does not match this
// constant is a fatal handshake error.
const ProtocolVersion = 9

// Server-to-client tags.
const (
	TagConfiguration byte = 1

	TagParseFunction byte = 2
	TagBreakpointList byte = 3
	TagBreakpointOffsetList byte = 4
	TagSourceCode byte = 5
	TagSourceCodeEnd byte = 6
	TagSourceCodeName byte = 7
	TagSourceCodeNameEnd byte = 8
	TagFunctionName byte = 9
	TagFunctionNameEnd byte = 10

	TagByteCodeCP byte = 11
	TagReleaseByteCodeCP byte = 12

	TagBreakpointHit byte = 13
	TagExceptionHit byte = 14
	TagExceptionStr byte = 15
	TagExceptionStrEnd byte = 16

	TagBacktrace byte = 17
	TagBacktraceEnd byte = 18

	TagEvalResult byte = 19
	TagEvalResultEnd byte = 20

	TagWaitForSource byte = 21
)

// Client-to-server tags.
const (
	TagFreeByteCodeCP byte = 32

	TagUpdateBreakpoint byte = 33
	TagExceptionConfig byte = 34

	TagGetBacktrace byte = 35

	TagStep byte = 36
	TagNext byte = 37
	TagFinish byte = 38
	TagContinue byte = 39
	TagStop byte = 40

	TagEval byte = 41
	TagEvalPart byte = 42

	TagClientSource byte = 43
	TagClientSourcePart byte = 44

	TagNoMoreSources byte = 45
	TagContextReset byte = 46
)

// Eval result subtypes — the final byte of an EVAL_RESULT_END payload.
const (
	EvalOK byte = 1
	EvalErrorType byte = 2
	EvalErrorFailed byte = 3
	EvalErrorAbort byte = 4
)

// EvalSubtypeEval is prefixed to an outgoing Evaluate payload before the
// CESU-8 expression bytes, and EvalSubtypeAbort is used by Restart's
// sentinel payload.
const (
	EvalSubtypeEval  byte = 0
	EvalSubtypeAbort byte = 1
)

// Source-control codes accepted by SendClientSourceControl.
const (
	NoMoreSourcesCode byte = 1
	ContextResetCode byte = 2
)

// ConfigurationFrameSize is the minimum size, in bytes, of a valid
// CONFIGURATION frame: [tag, max_message_size, cpointer_size,
// little_endian_flag, version].
const ConfigurationFrameSize = 5
