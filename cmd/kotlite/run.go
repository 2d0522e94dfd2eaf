package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"gopkg.in/urfave/cli.v1"

	"kotlite/pkg/driver"
	"kotlite/pkg/lexer"
	"kotlite/pkg/parser"
	"kotlite/pkg/source"
)

var (
	watchFlag = cli.BoolFlag{
		Name:  "watch",
		Usage: "Re-run the scripts whenever one of them changes",
	}
	printFlag = cli.BoolFlag{
		Name:  "print",
		Usage: "Print the value of the last statement",
	}
	includeFlag = cli.StringFlag{
		Name:  "include",
		Usage: "Glob selecting the files to check inside directories",
		Value: "**.kt",
	}
	jobsFlag = cli.IntFlag{
		Name:  "jobs",
		Usage: "Files parsed at once; overrides interpreter.parse_workers",
	}
	tokensFlag = cli.BoolFlag{
		Name:  "tokens",
		Usage: "Dump the token stream instead of the syntax tree",
	}

	runCommand = cli.Command{
		Name:      "run",
		Usage:     "Run scripts",
		ArgsUsage: "<script.kt>...",
		Flags:     []cli.Flag{watchFlag, printFlag},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.NewExitError("run: no scripts given", exitUsage)
			}
			return runScripts(ctx, ctx.Args())
		},
	}
	evalCommand = cli.Command{
		Name:      "eval",
		Usage:     "Evaluate an expression and print its value",
		ArgsUsage: "<expression>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return cli.NewExitError("eval: expected one expression", exitUsage)
			}
			env, _, err := setup(ctx)
			if err != nil {
				return err
			}
			res, err := env.Evaluate("<eval>", ctx.Args().First())
			if err != nil {
				report(err)
				return cli.NewExitError("", exitFailure)
			}
			fmt.Println(res.Display)
			return nil
		},
	}
	checkCommand = cli.Command{
		Name:      "check",
		Usage:     "Parse and analyze scripts without running them",
		ArgsUsage: "<file or directory>...",
		Flags:     []cli.Flag{includeFlag, jobsFlag},
		Action:    check,
	}
	astCommand = cli.Command{
		Name:      "ast",
		Usage:     "Dump the syntax tree of a script",
		ArgsUsage: "<script.kt>",
		Flags:     []cli.Flag{tokensFlag},
		Action:    dumpAST,
	}
)

func runScripts(ctx *cli.Context, paths []string) error {
	env, _, err := setup(ctx)
	if err != nil {
		return err
	}
	ok := runAll(env, paths, ctx.Bool(printFlag.Name))
	if ctx.Bool(watchFlag.Name) {
		return watch(env, paths)
	}
	if !ok {
		return cli.NewExitError("", exitFailure)
	}
	return nil
}

// runAll runs each script in turn and reports whether all of them succeeded.
func runAll(env *driver.Environment, paths []string, show bool) bool {
	ok := true
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read file '%s': %v\n", path, err)
			ok = false
			continue
		}
		res, err := env.Run(path, string(content))
		if err != nil {
			report(err)
			ok = false
			continue
		}
		if show {
			fmt.Println(res.Display)
		}
	}
	return ok
}

// watch re-runs all scripts after any of them was written, until interrupted.
func watch(env *driver.Environment, paths []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// Editors often replace files, so the directories are watched.
	dirs := map[string]bool{}
	watched := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	const debounce = 100 * time.Millisecond
	var timer *time.Timer
	rerun := make(chan struct{}, 1)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[event.Name] || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})
		case <-rerun:
			slog.Info("change detected, re-running", "scripts", len(paths))
			runAll(env, paths, false)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func check(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.NewExitError("check: no files given", exitUsage)
	}
	include, err := glob.Compile(ctx.String(includeFlag.Name), '/')
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("check: bad --include pattern: %v", err), exitUsage)
	}
	env, cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	var files []string
	for _, arg := range ctx.Args() {
		found, err := collect(arg, include)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	workers := cfg.Interpreter.ParseWorkers
	if ctx.IsSet(jobsFlag.Name) {
		workers = ctx.Int(jobsFlag.Name)
	}
	reports, err := env.CheckFiles(context.Background(), files, workers)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			report(r.Err)
			failed++
		}
	}
	fmt.Printf("%d checked, %d failed\n", len(files), failed)
	if failed > 0 {
		return cli.NewExitError("", exitFailure)
	}
	return nil
}

// collect expands a directory into the files matching include. Files named
// explicitly are always taken.
func collect(root string, include glob.Glob) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if include.Match(filepath.ToSlash(rel)) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func dumpAST(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("ast: expected one script", exitUsage)
	}
	path := ctx.Args().First()
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	src := source.FromFile(path, string(content))
	if ctx.Bool(tokensFlag.Name) {
		tokens, err := lexer.Tokenize(src)
		if err != nil {
			report(err)
			return cli.NewExitError("", exitFailure)
		}
		lexer.DumpTokens(os.Stdout, tokens)
		return nil
	}
	script, err := parser.ParseSource(src)
	if err != nil {
		report(err)
		return cli.NewExitError("", exitFailure)
	}
	parser.DumpAST(os.Stdout, script)
	return nil
}
