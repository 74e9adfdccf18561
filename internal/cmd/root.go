package cmd

import (
	"github.com/alecthomas/kong"
)

type CLI struct {
	Config  string `help:"Path to the YAML config file." default:"configs/config.yaml" type:"path"`
	Verbose bool   `help:"Enable debug logging."`

	VersionFlag kong.VersionFlag `name:"version" help:"Print version."`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Run the scanner daemon with scheduled scans."`
	Scan     ScanCmd     `cmd:"" help:"Run one full scan cycle and exit."`
	ScanLink ScanLinkCmd `cmd:"" name:"scan-link" help:"Scan a single search link and exit."`
	Settings SettingsCmd `cmd:"" help:"Show or change persisted scanner settings."`
	Check    CheckCmd    `cmd:"" help:"Check connectivity to the database, Redis and the parse service."`
}
