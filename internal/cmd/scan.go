package cmd

import (
	"fmt"

	"go-openclaw-scanner/internal/models"
)

type ScanCmd struct{}

func (c *ScanCmd) Run(ctx *Context) error {
	a, err := newApp(ctx.Ctx, ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	links, err := a.repo.ListLinks(ctx.Ctx)
	if err != nil {
		return err
	}
	res, err := a.scanner.ScanLinks(ctx.Ctx, links, true)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return printResult(ctx, res.NewListings, res.FailedLinks)
}

type ScanLinkCmd struct {
	ID string `arg:"" help:"Search link id."`
}

func (c *ScanLinkCmd) Run(ctx *Context) error {
	a, err := newApp(ctx.Ctx, ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	link, err := a.repo.GetLink(ctx.Ctx, c.ID)
	if err != nil {
		return err
	}
	res, err := a.scanner.ScanLinks(ctx.Ctx, []models.SearchLink{link}, true)
	if err != nil {
		return fmt.Errorf("scan link %s: %w", c.ID, err)
	}
	return printResult(ctx, res.NewListings, res.FailedLinks)
}

func printResult(ctx *Context, listings []models.JobListing, failed []string) error {
	for _, l := range listings {
		if _, err := fmt.Fprintf(ctx.Out, "%s\t%s\t%s\t%s\n", l.ID, l.Title, l.Company, l.ExternalURL); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(ctx.Err, "new=%d failed_links=%d\n", len(listings), len(failed))
	return err
}
