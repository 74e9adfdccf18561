package cmd

import (
	"encoding/json"
	"fmt"

	"go-openclaw-scanner/internal/models"
	"go-openclaw-scanner/internal/schedule"
	"go-openclaw-scanner/internal/settings"
)

type SettingsCmd struct {
	Show SettingsShowCmd `cmd:"" default:"1" help:"Print the persisted settings as JSON."`
	Set  SettingsSetCmd  `cmd:"" help:"Change persisted settings. A running daemon picks them up on restart."`
}

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(ctx *Context) error {
	current, err := settings.NewStore(ctx.Config.SettingsPath, ctx.Logger).Load()
	if err != nil {
		return err
	}
	return printSettings(ctx, current)
}

type SettingsSetCmd struct {
	Schedule      string `help:"Cron expression for scheduled scans; \"off\" disables them."`
	PreventSleep  string `name:"prevent-sleep" enum:",on,off" default:"" help:"Keep the machine awake while scheduled (on|off)."`
	Sound         string `enum:",on,off" default:"" help:"Play a sound with notifications (on|off)."`
	EmailAlerts   string `name:"email-alerts" enum:",on,off" default:"" help:"Ask the post-scan hook to send email alerts (on|off)."`
	InAppBrowsing string `name:"in-app-browsing" enum:",on,off" default:"" help:"Open listings in the app instead of the system browser (on|off)."`
}

func (c *SettingsSetCmd) Run(ctx *Context) error {
	store := settings.NewStore(ctx.Config.SettingsPath, ctx.Logger)
	current, err := store.Load()
	if err != nil {
		ctx.Logger.Warn().Err(err).Msg("⚠️ Existing settings unreadable, starting from defaults")
	}

	next, err := c.apply(current)
	if err != nil {
		return err
	}
	if err := store.Save(next); err != nil {
		return err
	}
	return printSettings(ctx, next)
}

func (c *SettingsSetCmd) apply(s models.ScannerSettings) (models.ScannerSettings, error) {
	s = s.Clone()
	switch c.Schedule {
	case "":
	case "off":
		s.Schedule = nil
	default:
		if err := schedule.Validate(c.Schedule); err != nil {
			return s, err
		}
		expr := c.Schedule
		s.Schedule = &expr
	}
	setToggle(&s.PreventSleep, c.PreventSleep)
	setToggle(&s.Sound, c.Sound)
	setToggle(&s.EmailAlerts, c.EmailAlerts)
	setToggle(&s.InAppBrowsing, c.InAppBrowsing)
	return s, nil
}

func setToggle(dst *bool, v string) {
	switch v {
	case "on":
		*dst = true
	case "off":
		*dst = false
	}
}

func printSettings(ctx *Context, s models.ScannerSettings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out, string(data))
	return err
}
