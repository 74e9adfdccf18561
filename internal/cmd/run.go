package cmd

import (
	"fmt"
)

type RunCmd struct{}

func (c *RunCmd) Run(ctx *Context) error {
	a, err := newApp(ctx.Ctx, ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scanner.Start(); err != nil {
		err = fmt.Errorf("start scanner: %w", err)
		if a.bot != nil {
			_ = a.bot.SendError(err)
		}
		return err
	}

	if a.bot != nil {
		go a.bot.Listen(ctx.Ctx, a.scanner.HandleNotificationAction)
		if err := a.bot.SendStatus(fmt.Sprintf("Scanner %s started. Schedule: %s", ctx.Version, scheduleLabel(a.scanner.Settings().ScheduleExpr()))); err != nil {
			ctx.Logger.Warn().Err(err).Msg("⚠️ Failed to send status to Telegram")
		}
	}

	<-ctx.Ctx.Done()
	ctx.Logger.Info().Msg("🛑 Shutdown requested")
	return nil
}

func scheduleLabel(expr string) string {
	if expr == "" {
		return "disabled"
	}
	return expr
}
