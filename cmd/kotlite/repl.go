package main

import (
	goerrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"kotlite/pkg/parser"
	"kotlite/pkg/source"
)

const continuationPrompt = "... "

var replCommand = cli.Command{
	Name:   "repl",
	Usage:  "Start an interactive session",
	Action: repl,
}

func repl(ctx *cli.Context) error {
	env, cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	histPath := cfg.Repl.HistoryFile
	if !filepath.IsAbs(histPath) {
		if home, err := os.UserHomeDir(); err == nil {
			histPath = filepath.Join(home, histPath)
		}
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println("kotlite (:quit to exit, :reset to forget declarations)")
	session := env.NewSession()
	for {
		code, ok := readInput(ln, cfg.Repl.Prompt)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(code)
		switch {
		case trimmed == "":
			continue
		case trimmed == ":quit":
			return nil
		case trimmed == ":reset":
			session.Reset()
			continue
		case strings.HasPrefix(trimmed, ":"):
			fmt.Println("unknown command. Type :quit to exit.")
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		res, err := session.Eval(code)
		if err != nil {
			report(err)
			continue
		}
		if res.Display != "" {
			fmt.Println(res.Display)
		}
	}
}

// readInput reads lines until they parse or fail for a reason other than ending
// early. An empty continuation line submits what was typed.
func readInput(ln *liner.State, prompt string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = continuationPrompt
		}
		line, err := ln.Prompt(p)
		if goerrors.Is(err, io.EOF) || goerrors.Is(err, liner.ErrPromptAborted) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			if strings.TrimSpace(line) == "" {
				return b.String(), true
			}
			b.WriteByte('\n')
		}
		b.WriteString(line)
		_, err = parser.ParseSource(source.NewReplSource(b.String()))
		if err == nil || !parser.IsIncomplete(err) {
			return b.String(), true
		}
	}
}
