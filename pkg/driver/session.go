package driver

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"kotlite/pkg/checker"
	"kotlite/pkg/interpreter"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/source"
)

// Session evaluates a sequence of inputs that see each other's declarations, as a
// REPL does. Every input is analyzed together with the inputs accepted before it;
// those are replayed on a fresh interpreter with their output discarded, then the
// new statements run with output enabled.
type Session struct {
	env     *Environment
	history []string
}

// NewSession starts an empty session on env.
func (e *Environment) NewSession() *Session { return &Session{env: e} }

// switchWriter forwards to w while on is set.
type switchWriter struct {
	w  io.Writer
	on bool
}

func (s *switchWriter) Write(p []byte) (int, error) {
	if !s.on {
		return len(p), nil
	}
	return s.w.Write(p)
}

// Eval runs one input. On success the input joins the session history.
func (s *Session) Eval(input string) (*Result, error) {
	e := s.env
	if err := e.Prepare(); err != nil {
		return nil, err
	}
	prior, err := s.statementCount()
	if err != nil {
		return nil, err
	}
	src := strings.Join(append(append([]string(nil), s.history...), input), "\n")
	start := time.Now()
	script, err := parser.ParseSource(source.NewReplSource(src))
	e.observe("<repl>", PhaseParse, start, err)
	if err != nil {
		return nil, err
	}
	start = time.Now()
	err = checker.Analyze(script, e.exec)
	e.observe("<repl>", PhaseAnalyze, start, err)
	if err != nil {
		return nil, err
	}

	out := &switchWriter{w: e.stdout}
	runID := uuid.NewString()
	start = time.Now()
	it, err := e.interpreter(out)
	var res *Result
	if err == nil {
		res, err = s.replay(it, out, script.Statements[:prior], script.Statements[prior:])
	}
	e.observeWith(e.log.With("run_id", runID), "<repl>", PhaseRun, start, err)
	if err != nil {
		return nil, err
	}
	res.RunID = runID
	s.history = append(s.history, input)
	return res, nil
}

func (s *Session) replay(it *interpreter.Interpreter, out *switchWriter, old, fresh []parser.Statement) (*Result, error) {
	if _, err := it.Eval(&parser.ScriptNode{Statements: old}); err != nil {
		return nil, err
	}
	out.on = true
	v, err := it.Eval(&parser.ScriptNode{Statements: fresh})
	if err != nil {
		return nil, err
	}
	res := &Result{Value: v, Variables: it.Variables()}
	if v != nil && v != runtime.Unit {
		res.Display, err = it.ToString(v)
	}
	return res, err
}

// statementCount is the number of statements the history parses into.
func (s *Session) statementCount() (int, error) {
	if len(s.history) == 0 {
		return 0, nil
	}
	script, err := parser.ParseSource(source.NewReplSource(strings.Join(s.history, "\n")))
	if err != nil {
		return 0, err
	}
	return len(script.Statements), nil
}

// Reset forgets the history.
func (s *Session) Reset() { s.history = nil }
