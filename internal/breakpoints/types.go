// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package breakpoints maintains the client-side model of scripts,
// parsed functions, and breakpoints that the JerryScript remote
// debugger protocol builds up as the engine parses source code. It has
// no knowledge of the wire format; internal/protocol feeds it decoded
// fields and consumes the Breakpoint/Function values it returns.
package breakpoints

// Script is a single source program the engine has finished parsing.
// Scripts are 1-indexed; index 0 is reserved as a sentinel meaning "no
// script". A Script is immutable once created and is only removed at
// session end.
type Script struct {
	ID     uint32
	Name   string
	Source string

	// LineCount is the number of newline-delimited lines in Source,
	// computed once at creation time (count of '\n' plus one).
	LineCount int
}

// Function is a single function (or the synthesized top-level program
// frame) the engine has finished parsing. Functions are stored in the
// Model's arena keyed by ByteCodeCP and referenced from Breakpoint by
// that same key rather than by pointer, so that releasing a function
// cannot leave a dangling Breakpoint.Func reference.
type Function struct {
	ByteCodeCP uint64
	ScriptID   uint32
	IsFunc     bool

	// Line and Column are the function's declaration position. Column 0
	// means "unknown" — a convention preserved from the engine's own
	// stack-frame reporting, not an error condition.
	Line   uint32
	Column uint32

	// Name is the function's name, or "" for an anonymous function
	// (callers render "" as "function" for display).
	Name       string
	SourceName string

	// Lines maps a source line to the Breakpoint at that line within
	// this function. Offsets maps a bytecode offset to the same
	// Breakpoint, keyed differently. Every Breakpoint in this Function
	// is reachable from exactly one entry in each map.
	Lines   map[uint32]*Breakpoint
	Offsets map[uint32]*Breakpoint

	// FirstBreakpointLine and FirstBreakpointOffset are the line and
	// offset of the first line/offset pair in the function's breakpoint
	// lists, as received; they are not recomputed as minima. The
	// offset-resolution rule maps any offset below FirstBreakpointOffset
	// to that first breakpoint.
	FirstBreakpointLine   uint32
	FirstBreakpointOffset uint32
	hasBreakpoints        bool
}

// Breakpoint is one statement-boundary location within a Function,
// reachable both by source line and by bytecode offset.
type Breakpoint struct {
	ScriptID uint32
	FuncKey  uint64 // Function.ByteCodeCP of the owning function
	Line     uint32
	Offset   uint32

	// ActiveIndex is -1 when the breakpoint is inactive, otherwise the
	// position of this breakpoint in the active set (and the
	// engine-visible breakpoint identifier).
	ActiveIndex int
}

// IsActive reports whether the breakpoint is currently enabled.
func (b *Breakpoint) IsActive() bool {
	return b.ActiveIndex >= 0
}

// HitResolution describes the outcome of resolving a (byteCodeCP,
// offset) hit report to a Breakpoint.
type HitResolution struct {
	Breakpoint *Breakpoint
	Exact      bool
}
