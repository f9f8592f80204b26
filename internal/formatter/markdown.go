// Package formatter renders records as aligned markdown tables.
package formatter

import (
	"strings"

	"presswatch/internal/models"

	"github.com/mattn/go-runewidth"
)

// DefaultColumns are the columns RecordsTable prints when none are given.
var DefaultColumns = []string{models.ColumnDate, models.ColumnCompany, models.ColumnTitle, models.ColumnLink}

// RecordsTable renders records as a markdown table with the given columns.
// Columns may name core or derived fields.
func RecordsTable(records []models.Record, columns []string) string {
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	rows := make([]string, 0, len(records)+2)
	rows = append(rows, row(columns), row(separator(len(columns))))

	for _, r := range records {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = Cell(r, c)
		}

		rows = append(rows, row(cells))
	}

	return strings.Join(alignTable(rows), "\n") + "\n"
}

// Value returns the raw value of core or derived column c.
func Value(r models.Record, c string) string {
	switch c {
	case models.ColumnID:
		return r.ID
	case models.ColumnCompany:
		return r.Company
	case models.ColumnTitle:
		return r.Title
	case models.ColumnLink:
		return r.Link
	case models.ColumnDate:
		return r.Date
	case models.ColumnFetchedAt:
		return r.FetchedAt
	default:
		return r.Field(c)
	}
}

// Cell returns the value of column c for r, flattened for a table cell.
func Cell(r models.Record, c string) string {
	v := strings.Join(strings.Fields(Value(r, c)), " ")

	return strings.ReplaceAll(v, "|", `\|`)
}

func row(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func separator(n int) []string {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = "---"
	}

	return cells
}

// FormatMarkdown realigns every table in a markdown document so that
// columns line up by display width.
func FormatMarkdown(content string) string {
	lines := strings.Split(content, "\n")

	var (
		out   []string
		table []string
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			table = append(table, line)

			continue
		}

		if len(table) > 0 {
			out = append(out, alignTable(table)...)
			table = nil
		}

		out = append(out, line)
	}

	if len(table) > 0 {
		out = append(out, alignTable(table)...)
	}

	return strings.Join(out, "\n")
}

// splitRow splits a table row on unescaped pipes.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")

	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}

	var (
		cells []string
		cur   strings.Builder
	)

	for i := 0; i < len(line); i++ {
		if line[i] == '\\' && i+1 < len(line) && line[i+1] == '|' {
			cur.WriteString(`\|`)
			i++

			continue
		}

		if line[i] == '|' {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()

			continue
		}

		cur.WriteByte(line[i])
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}

	return true
}

func alignTable(rows []string) []string {
	// A header needs a separator below it.
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, len(rows))
	cols := 0

	for i, r := range rows {
		table[i] = splitRow(r)
		cols = max(cols, len(table[i]))
	}

	sepIdx := -1
	if isSeparatorRow(table[1]) {
		sepIdx = 1
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = 3
	}

	for i, cells := range table {
		if i == sepIdx {
			continue
		}

		for j, c := range cells {
			widths[j] = max(widths[j], runewidth.StringWidth(c))
		}
	}

	out := make([]string, 0, len(table))

	for i, cells := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for j := range cols {
			sb.WriteString(" ")

			if i == sepIdx {
				sb.WriteString(strings.Repeat("-", widths[j]))
			} else {
				content := ""
				if j < len(cells) {
					content = cells[j]
				}

				sb.WriteString(runewidth.FillRight(content, widths[j]))
			}

			sb.WriteString(" |")
		}

		out = append(out, sb.String())
	}

	return out
}
