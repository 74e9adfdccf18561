package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"go-openclaw-scanner/internal/cmd"
	"go-openclaw-scanner/internal/config"
	"go-openclaw-scanner/internal/logging"
)

var version = "dev"

func main() {
	cli := &cmd.CLI{}
	parser, err := kong.New(cli,
		kong.Name("scanner"),
		kong.Description("Background job-search scanner."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Settings only touch the local file, so they work without services.
	load := config.Load
	if strings.HasPrefix(kctx.Command(), "settings") {
		load = config.Read
	}
	cfg, err := load(cli.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if cli.Verbose {
		level = "debug"
	}
	logger := logging.New(os.Stderr, level, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx := &cmd.Context{
		Ctx:     ctx,
		Out:     os.Stdout,
		Err:     os.Stderr,
		Config:  cfg,
		Logger:  logger,
		Version: version,
	}

	if err := kctx.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("❌ Command failed")
		stop()
		os.Exit(1)
	}
}
