package runtime

import (
	"kotlite/pkg/errors"
	"kotlite/pkg/parser"
)

// DefaultMaxCallDepth bounds nested function calls unless configured otherwise.
const DefaultMaxCallDepth = 1024

// Frame is one call stack entry. Every frame owns exactly one scope.
type Frame struct {
	// Function is nil for block and script frames.
	Function  *FunctionDefinition
	Name      string
	ScopeType parser.ScopeType
	Position  errors.Position
	Scope     *SymbolTable
}

// StackFrameInfo is a frozen frame for stack traces.
type StackFrameInfo struct {
	Function string
	Position errors.Position
}

// CallStack is the evaluator's explicit stack of frames.
type CallStack struct {
	frames   []*Frame
	depth    int
	MaxDepth int
}

// NewCallStack creates an empty stack. maxDepth <= 0 selects DefaultMaxCallDepth.
func NewCallStack(maxDepth int) *CallStack {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &CallStack{MaxDepth: maxDepth}
}

// Push adds a frame. It reports false when a function frame would exceed MaxDepth;
// the frame is not pushed in that case.
func (cs *CallStack) Push(f *Frame) bool {
	if f.Function != nil {
		if cs.depth >= cs.MaxDepth {
			return false
		}
		cs.depth++
	}
	cs.frames = append(cs.frames, f)
	return true
}

// Pop removes the top frame.
func (cs *CallStack) Pop() {
	n := len(cs.frames)
	if n == 0 {
		return
	}
	if cs.frames[n-1].Function != nil {
		cs.depth--
	}
	cs.frames[n-1] = nil
	cs.frames = cs.frames[:n-1]
}

// Top returns the innermost frame.
func (cs *CallStack) Top() *Frame {
	if len(cs.frames) == 0 {
		return nil
	}
	return cs.frames[len(cs.frames)-1]
}

// Depth is the number of function frames.
func (cs *CallStack) Depth() int { return cs.depth }

// Len is the number of frames of any kind.
func (cs *CallStack) Len() int { return len(cs.frames) }

// Trace snapshots the stack innermost first, one entry per function frame plus the
// script frame. pos is the failure position inside the innermost frame.
func (cs *CallStack) Trace(pos errors.Position) []StackFrameInfo {
	var out []StackFrameInfo
	for i := len(cs.frames) - 1; i >= 0; i-- {
		f := cs.frames[i]
		if f.Function == nil && f.ScopeType != parser.ScopeScript {
			continue
		}
		out = append(out, StackFrameInfo{Function: f.Name, Position: pos})
		pos = f.Position
	}
	return out
}

// ToErrorFrames converts a trace for error reporting.
func ToErrorFrames(trace []StackFrameInfo) []errors.StackFrame {
	out := make([]errors.StackFrame, len(trace))
	for i, f := range trace {
		out[i] = errors.StackFrame{Function: f.Function, Position: f.Position}
	}
	return out
}
