// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package protocol

import "github.com/jerryscript-project/iotjs-vscode-extension/internal/breakpoints"

// ScriptParsedEvent is delivered once a script's SOURCE_CODE_END frame
// has been fully decoded.
type ScriptParsedEvent struct {
	ID        uint32
	Name      string
	LineCount int
}

// BreakpointHitEvent is delivered on a BREAKPOINT_HIT frame.
type BreakpointHitEvent struct {
	Breakpoint *breakpoints.Breakpoint
	Exact      bool
	StopLabel  string
}

// ExceptionHitEvent is delivered on an EXCEPTION_HIT frame.
type ExceptionHitEvent struct {
	Breakpoint *breakpoints.Breakpoint
	Exact      bool
	Message    string
}

// BacktraceFrame is one resolved stack frame in a BACKTRACE response.
type BacktraceFrame struct {
	Breakpoint *breakpoints.Breakpoint
	ByteCodeCP uint64
	Offset     uint32
}

// Delegate is the typed callback surface a façade supplies to observe
// session activity. Every field is optional; a nil field is simply not
// called. Delivery order matches inbound frame order, and the session
// finishes its own state update before calling out, so a callback must
// never call back into the Session that invoked it.
type Delegate struct {
	OnScriptParsed  func(ScriptParsedEvent)
	OnBreakpointHit func(BreakpointHitEvent)
	OnExceptionHit  func(ExceptionHitEvent)
	OnBacktrace     func([]BacktraceFrame)
	OnEvalResult    func(subtype byte, value string)
	OnWaitForSource func()
	OnResume        func()
	OnError         func(code int, message string)
}

func (d Delegate) scriptParsed(e ScriptParsedEvent) {
	if d.OnScriptParsed != nil {
		d.OnScriptParsed(e)
	}
}

func (d Delegate) breakpointHit(e BreakpointHitEvent) {
	if d.OnBreakpointHit != nil {
		d.OnBreakpointHit(e)
	}
}

func (d Delegate) exceptionHit(e ExceptionHitEvent) {
	if d.OnExceptionHit != nil {
		d.OnExceptionHit(e)
	}
}

func (d Delegate) backtrace(frames []BacktraceFrame) {
	if d.OnBacktrace != nil {
		d.OnBacktrace(frames)
	}
}

func (d Delegate) evalResult(subtype byte, value string) {
	if d.OnEvalResult != nil {
		d.OnEvalResult(subtype, value)
	}
}

func (d Delegate) waitForSource() {
	if d.OnWaitForSource != nil {
		d.OnWaitForSource()
	}
}

func (d Delegate) resume() {
	if d.OnResume != nil {
		d.OnResume()
	}
}

func (d Delegate) error(code int, message string) {
	if d.OnError != nil {
		d.OnError(code, message)
	}
}
