// Command kotlite runs, checks and inspects Kotlin-subset scripts.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"kotlite/pkg/config"
	"kotlite/pkg/driver"
	"kotlite/pkg/errors"
)

// Exit codes, following sysexits.
const (
	exitUsage   = 64
	exitFailure = 70
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
		Value: config.DefaultFile,
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (debug, info, warn, error); overrides the config file",
	}
	metricsFlag = cli.StringFlag{
		Name:  "metrics",
		Usage: "Serve Prometheus metrics on this address, e.g. :9100",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "kotlite"
	app.Usage = "an embeddable Kotlin-subset interpreter"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{configFlag, logLevelFlag, metricsFlag}
	app.Commands = []cli.Command{
		runCommand,
		evalCommand,
		checkCommand,
		astCommand,
		replCommand,
	}
	app.Action = func(ctx *cli.Context) error {
		if ctx.NArg() > 0 {
			return runScripts(ctx, ctx.Args())
		}
		return repl(ctx)
	}
	// Commands return cli exit errors, which app.Run turns into exit codes itself.
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

// setup loads the config and builds the environment every command works on.
func setup(ctx *cli.Context) (*driver.Environment, *config.Config, error) {
	cfg, err := config.LoadOptional(ctx.GlobalString(configFlag.Name))
	if err != nil {
		return nil, nil, cli.NewExitError(fmt.Sprintf("config: %v", err), exitUsage)
	}
	if level := ctx.GlobalString(logLevelFlag.Name); level != "" {
		cfg.Interpreter.LogLevel = level
	}
	level, err := config.ParseLevel(cfg.Interpreter.LogLevel)
	if err != nil {
		return nil, nil, cli.NewExitError(err.Error(), exitUsage)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	modules, err := driver.Modules(cfg.Interpreter.Modules)
	if err != nil {
		return nil, nil, cli.NewExitError(fmt.Sprintf("config: %v", err), exitUsage)
	}
	env, err := driver.NewEnvironment(driver.Options{
		Modules:      modules,
		Stdout:       os.Stdout,
		MaxCallDepth: cfg.Interpreter.MaxCallDepth,
		CacheSize:    cfg.Interpreter.CacheSize,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}

	addr := ctx.GlobalString(metricsFlag.Name)
	if addr == "" {
		addr = cfg.Interpreter.MetricsAddr
	}
	if addr != "" {
		serveMetrics(env, addr, logger)
	}
	return env, cfg, nil
}

func serveMetrics(env *driver.Environment, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(env.Metrics().Registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
}

// report prints a pipeline error with its source snippet.
func report(err error) {
	errors.DisplayErrors(os.Stderr, driver.AsKotliteError(err))
}
