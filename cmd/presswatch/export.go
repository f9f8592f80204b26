package main

import (
	"presswatch/internal/export"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		filters filterFlags
		out     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored press releases to an Excel workbook.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			merger, release, err := a.openMerger()
			if err != nil {
				return err
			}
			defer release()

			snap, err := merger.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			f, err := filters.filter(snap.Columns)
			if err != nil {
				return err
			}

			records := f.Apply(snap.Records)

			if err := export.WriteXLSX(out, records, export.Columns(snap.Columns)); err != nil {
				return err
			}

			a.log.Info("export written", "path", out, "records", len(records))

			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "press_releases.xlsx", "output workbook path")

	return cmd
}
