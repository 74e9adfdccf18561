package cmd

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/config"
)

type Context struct {
	// Ctx is cancelled on SIGINT or SIGTERM.
	Ctx     context.Context
	Out     io.Writer
	Err     io.Writer
	Config  *config.Config
	Logger  zerolog.Logger
	Version string
}
