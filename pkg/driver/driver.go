// Package driver ties the pipeline together: it owns an execution environment and
// compiles (lex, parse, analyze) and runs scripts against it.
package driver

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"kotlite/pkg/builtins"
	"kotlite/pkg/checker"
	"kotlite/pkg/errors"
	"kotlite/pkg/interpreter"
	"kotlite/pkg/parser"
	"kotlite/pkg/runtime"
	"kotlite/pkg/source"
)

// Phases of a script's life, used as log attributes and metric labels.
const (
	PhaseParse   = "parse"
	PhaseAnalyze = "analyze"
	PhaseRun     = "run"
)

// Options configure an Environment. The zero value selects the standard library,
// os.Stdout, the default call depth and a discarding logger.
type Options struct {
	// Modules replaces the standard library when non-nil.
	Modules []runtime.Module
	Stdout  io.Writer
	// MaxCallDepth bounds nested calls; <= 0 selects runtime.DefaultMaxCallDepth.
	MaxCallDepth int
	// CacheSize is the number of analyzed scripts kept; 0 selects DefaultCacheSize,
	// a negative size disables the cache.
	CacheSize int
	Logger    *slog.Logger
}

// Environment is a host's handle on the interpreter: modules are installed into it,
// then scripts are compiled and run against it. Each Run uses a fresh interpreter,
// so runs do not share script state.
type Environment struct {
	exec    *runtime.ExecutionEnvironment
	stdout  io.Writer
	depth   int
	log     *slog.Logger
	cache   *compileCache
	metrics *Metrics
}

// Result is the outcome of a successful run.
type Result struct {
	RunID string
	// Value is the value of the last statement, or of the expression for Evaluate.
	Value runtime.Value
	// Display is Value rendered with toString.
	Display string
	// Variables holds the script's top-level properties by name.
	Variables map[string]runtime.Value
}

// NewEnvironment creates an environment with the configured modules installed.
func NewEnvironment(opts Options) (*Environment, error) {
	e := &Environment{
		exec:    runtime.NewExecutionEnvironment(),
		stdout:  opts.Stdout,
		depth:   opts.MaxCallDepth,
		log:     opts.Logger,
		metrics: NewMetrics(),
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cache, err := newCompileCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	e.cache = cache
	modules := opts.Modules
	if modules == nil {
		modules = builtins.Standard()
	}
	if err := e.Install(modules...); err != nil {
		return nil, err
	}
	return e, nil
}

// Modules resolves standard module names, as listed in a config file.
func Modules(names []string) ([]runtime.Module, error) {
	out := make([]runtime.Module, 0, len(names))
	for _, name := range names {
		m, ok := builtins.ByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown module %q", name)
		}
		out = append(out, m)
	}
	return out, nil
}

// Install registers further modules. It fails once the first script was compiled.
func (e *Environment) Install(modules ...runtime.Module) error {
	if err := e.exec.Install(modules...); err != nil {
		return err
	}
	for _, m := range modules {
		e.log.Debug("module installed", "module", m.Name())
	}
	return nil
}

// Execution exposes the underlying execution environment for read-only walks over
// the registered declarations.
func (e *Environment) Execution() *runtime.ExecutionEnvironment { return e.exec }

// Metrics returns the environment's collectors.
func (e *Environment) Metrics() *Metrics { return e.metrics }

// Prepare analyzes the native declarations and preludes and seals the environment.
// Compile does this on first use.
func (e *Environment) Prepare() error {
	if e.exec.IsPrepared() {
		return nil
	}
	start := time.Now()
	err := checker.Prepare(e.exec)
	e.observe("<environment>", PhaseAnalyze, start, err)
	return err
}

// Compile parses and analyzes a script. Analyzed scripts are cached by file name and
// content.
func (e *Environment) Compile(filename, src string) (*parser.ScriptNode, error) {
	if err := e.Prepare(); err != nil {
		return nil, err
	}
	key := cacheKey(filename, src)
	if script, ok := e.cache.get(key); ok {
		e.metrics.cacheHits.Inc()
		e.log.Debug("compile cache hit", "file", filename)
		return script, nil
	}
	start := time.Now()
	script, err := parser.ParseSource(source.Named(filename, src))
	e.observe(filename, PhaseParse, start, err)
	if err != nil {
		return nil, err
	}
	start = time.Now()
	err = checker.Analyze(script, e.exec)
	e.observe(filename, PhaseAnalyze, start, err)
	if err != nil {
		return nil, err
	}
	e.cache.add(key, script)
	return script, nil
}

// Check compiles a script and discards the result.
func (e *Environment) Check(filename, src string) error {
	_, err := e.Compile(filename, src)
	return err
}

// FileReport is the outcome of checking one file with CheckFiles.
type FileReport struct {
	Path string
	Err  error
}

// CheckFiles compiles many files. Reading and parsing run on a pool of workers
// goroutines (runtime.NumCPU when workers <= 0); analysis runs one file at a time
// in the order given. Analyzed scripts enter the compile cache. The error is
// non-nil only when the batch itself could not run.
func (e *Environment) CheckFiles(ctx context.Context, paths []string, workers int) ([]FileReport, error) {
	if err := e.Prepare(); err != nil {
		return nil, err
	}
	parsed, stats, err := ParseFiles(ctx, paths, workers)
	if err != nil {
		return nil, err
	}
	e.log.Debug("parsed files", "workers", stats.Workers, "parsed", stats.Parsed, "failed", stats.Failed)

	reports := make([]FileReport, len(parsed))
	for i, res := range parsed {
		reports[i] = FileReport{Path: res.Job.Path}
		e.record(e.log, res.Job.Path, PhaseParse, res.Duration, res.Err)
		if res.Err != nil {
			reports[i].Err = res.Err
			continue
		}
		key := cacheKey(res.Job.Path, res.Source)
		if _, ok := e.cache.get(key); ok {
			e.metrics.cacheHits.Inc()
			continue
		}
		start := time.Now()
		err := checker.Analyze(res.Script, e.exec)
		e.observe(res.Job.Path, PhaseAnalyze, start, err)
		if err != nil {
			reports[i].Err = err
			continue
		}
		e.cache.add(key, res.Script)
	}
	return reports, nil
}

// Run compiles and runs a script.
func (e *Environment) Run(filename, src string) (*Result, error) {
	script, err := e.Compile(filename, src)
	if err != nil {
		return nil, err
	}
	return e.execute(filename, func(it *interpreter.Interpreter) (runtime.Value, error) {
		return it.Eval(script)
	})
}

// Evaluate compiles and evaluates a single expression.
func (e *Environment) Evaluate(filename, src string) (*Result, error) {
	if err := e.Prepare(); err != nil {
		return nil, err
	}
	start := time.Now()
	expr, err := parser.ParseExpression(source.Named(filename, src))
	e.observe(filename, PhaseParse, start, err)
	if err != nil {
		return nil, err
	}
	start = time.Now()
	err = checker.Analyze(&parser.ScriptNode{Statements: []parser.Statement{expr}}, e.exec)
	e.observe(filename, PhaseAnalyze, start, err)
	if err != nil {
		return nil, err
	}
	return e.execute(filename, func(it *interpreter.Interpreter) (runtime.Value, error) {
		return it.EvalExpression(expr)
	})
}

func (e *Environment) interpreter(out io.Writer) (*interpreter.Interpreter, error) {
	return interpreter.New(e.exec, interpreter.Options{Stdout: out, MaxCallDepth: e.depth})
}

// execute runs fn on a fresh interpreter and collects the result.
func (e *Environment) execute(filename string, fn func(*interpreter.Interpreter) (runtime.Value, error)) (*Result, error) {
	runID := uuid.NewString()
	log := e.log.With("run_id", runID)
	start := time.Now()
	it, err := e.interpreter(e.stdout)
	if err == nil {
		var v runtime.Value
		if v, err = fn(it); err == nil {
			res := &Result{RunID: runID, Value: v, Variables: it.Variables()}
			res.Display, err = it.ToString(v)
			e.observeWith(log, filename, PhaseRun, start, err)
			return res, err
		}
	}
	e.observeWith(log, filename, PhaseRun, start, err)
	return nil, err
}

func (e *Environment) observe(filename, phase string, start time.Time, err error) {
	e.observeWith(e.log, filename, phase, start, err)
}

// observeWith records a finished phase in the metrics and the log.
func (e *Environment) observeWith(log *slog.Logger, filename, phase string, start time.Time, err error) {
	e.record(log, filename, phase, time.Since(start), err)
}

func (e *Environment) record(log *slog.Logger, filename, phase string, d time.Duration, err error) {
	e.metrics.observe(phase, d, err)
	if err != nil {
		log.Info("phase failed", "file", filename, "phase", phase, "duration", d, "kind", errorKind(err), "error", err)
		return
	}
	log.Debug("phase done", "file", filename, "phase", phase, "duration", d)
}

func errorKind(err error) string {
	var kerr errors.KotliteError
	if goerrors.As(err, &kerr) {
		return kerr.Kind()
	}
	return "Internal"
}

// AsKotliteError extracts a diagnostic from err, wrapping foreign errors as runtime
// errors without position.
func AsKotliteError(err error) errors.KotliteError {
	var kerr errors.KotliteError
	if goerrors.As(err, &kerr) {
		return kerr
	}
	return &errors.RuntimeError{Msg: err.Error(), Cause: err}
}
