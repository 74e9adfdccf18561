package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go-openclaw-scanner/internal/database"
	"go-openclaw-scanner/internal/hook"
)

type CheckCmd struct {
	Timeout time.Duration `default:"10s" help:"Timeout for each check."`
}

// Run verifies connectivity and prints one line per dependency. It fails if
// any check fails.
func (c *CheckCmd) Run(ctx *Context) error {
	failed := 0
	report := func(name, detail string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(ctx.Out, "❌ %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(ctx.Out, "✅ %s %s\n", name, detail)
	}

	detail, err := c.checkDatabase(ctx)
	report("database", detail, err)
	if ctx.Config.RedisURL != "" {
		report("redis", "", c.checkRedis(ctx))
	}
	detail, err = c.checkParser(ctx)
	report("parser", detail, err)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func (c *CheckCmd) checkDatabase(ctx *Context) (string, error) {
	tctx, cancel := context.WithTimeout(ctx.Ctx, c.Timeout)
	defer cancel()

	repo, err := database.ConnectDB(tctx, ctx.Config.DatabaseURL)
	if err != nil {
		return "", err
	}
	defer repo.Close()

	if err := repo.EnsureSchema(tctx); err != nil {
		return "", err
	}
	version, size, err := repo.ServerInfo(tctx)
	return fmt.Sprintf("(%s, %s)", version, size), err
}

func (c *CheckCmd) checkRedis(ctx *Context) error {
	tctx, cancel := context.WithTimeout(ctx.Ctx, c.Timeout)
	defer cancel()

	rdb, err := hook.NewRedisClient(tctx, ctx.Config.RedisURL)
	if err != nil {
		return err
	}
	_ = rdb.Close()
	return nil
}

func (c *CheckCmd) checkParser(ctx *Context) (string, error) {
	tctx, cancel := context.WithTimeout(ctx.Ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tctx, http.MethodGet, ctx.Config.ParserURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return fmt.Sprintf("(HTTP %d)", resp.StatusCode), nil
}
