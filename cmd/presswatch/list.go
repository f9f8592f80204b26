package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"presswatch/internal/config"
	"presswatch/internal/formatter"
	"presswatch/internal/models"
	"presswatch/internal/query"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// ErrInvalidFormat is returned for an unknown --format value.
var ErrInvalidFormat = errors.New("invalid format")

// filterFlags are shared by list and export.
type filterFlags struct {
	from      string
	to        string
	text      string
	companies []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.companies, "company", nil, "only these companies")
	cmd.Flags().StringVar(&f.from, "from", "", "earliest date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "latest date YYYY-MM-DD")
	cmd.Flags().StringVarP(&f.text, "q", "q", "", "free text searched in titles and derived columns")
}

func (f *filterFlags) filter(textFields []string) (query.Filter, error) {
	from, err := config.ParseCutoff(f.from)
	if err != nil {
		return query.Filter{}, fmt.Errorf("--from: %w", err)
	}

	to, err := config.ParseCutoff(f.to)
	if err != nil {
		return query.Filter{}, fmt.Errorf("--to: %w", err)
	}

	return query.Filter{
		Companies:  f.companies,
		From:       from,
		To:         to,
		Text:       f.text,
		TextFields: textFields,
	}, nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		filters filterFlags
		format  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored press releases, newest first.",
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
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			return writeRecords(cmd.OutOrStdout(), format, records, query.Summarize(records))
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, markdown or json")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n records")

	return cmd
}

func writeRecords(w io.Writer, format string, records []models.Record, summary query.Summary) error {
	switch format {
	case "table":
		t := newTable()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Date", "Company", "Title", "Link"})

		for _, r := range records {
			t.AppendRow(table.Row{r.Date, r.Company, r.Title, r.Link})
		}

		t.AppendFooter(table.Row{
			fmt.Sprintf("%d records", summary.Count),
			"top: " + summary.TopCompany,
			fmt.Sprintf("%s .. %s", summary.Earliest, summary.Latest),
			"",
		})
		t.Render()

		return nil
	case "markdown":
		_, err := io.WriteString(w, formatter.RecordsTable(records, nil))

		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(records)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}
