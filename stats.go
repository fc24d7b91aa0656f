package main

import (
	"context"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gofolio/internal/content"
)

// renderStats writes the dashboard counters as a table.
func renderStats(w io.Writer, kinds []content.Kind, stats *content.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Kind", "Total", "Published", "Featured"})
	for _, k := range kinds {
		ks := stats.Content[k.Slug]
		t.AppendRow(table.Row{k.Slug, ks.Total, ks.Published, ks.Featured})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"messages", stats.Messages.Total, "", ""})
	t.AppendRow(table.Row{"unread", stats.Messages.Unread, "", ""})
	t.AppendRow(table.Row{"meetings", stats.Meetings.Total, "", ""})
	t.AppendRow(table.Row{"pending", stats.Meetings.Pending, "", ""})

	t.Render()
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print record counts per content kind",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, err := NewApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.Catalog.Stats(ctx)
		if err != nil {
			return err
		}
		renderStats(os.Stdout, app.Catalog.Kinds(), stats)
		return nil
	},
}
