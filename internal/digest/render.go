package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"presswatch/internal/formatter"
	"presswatch/internal/models"
)

// Links are the URLs placed in the digest body.
type Links struct {
	Dashboard   string
	Unsubscribe string
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">
<style>
body { margin:0; padding:0; background:#f6f8fb; color:#1f2937; font-family:-apple-system, 'Segoe UI', Roboto, sans-serif; }
a { color:#1a73e8; text-decoration:none; }
.container { max-width:700px; margin:24px auto; background:#fff; border-radius:10px; }
.header { background:#0b2b6b; color:#fff; padding:20px 28px; }
.content { padding:24px 28px; }
.pill { display:inline-block; padding:6px 10px; background:#f6f8fb; border-radius:999px; color:#6b7280; font-size:12px; }
.item { padding:14px 0; border-bottom:1px solid #eee; list-style:none; }
.meta { color:#6b7280; font-size:12px; margin-top:4px; }
.footer { color:#6b7280; font-size:12px; padding:20px 28px; text-align:center; }
</style></head>
<body><div class="container">
<div class="header"><h1>Weekly Digest: {{.Label}}</h1></div>
<div class="content">
{{- if .Summary}}
<p class="pill">Summary</p>
<div>{{.Summary}}</div>
{{- end}}
{{- if .Links.Dashboard}}
<p><a href="{{.Links.Dashboard}}">Open PressWatch</a></p>
{{- end}}
<p class="pill">New Press Releases</p>
{{- if .Records}}
<ul>
{{- range .Records}}
<li class="item"><a href="{{.Link}}" target="_blank">{{.Title}}</a><div class="meta">{{.Company}} | {{.Date}}</div></li>
{{- end}}
</ul>
{{- else}}
<p>No new press releases this period.</p>
{{- end}}
</div>
<div class="footer">Sent automatically by PressWatch
{{- if .Links.Unsubscribe}}<br><a href="{{.Links.Unsubscribe}}">Unsubscribe</a>{{end}}</div>
</div></body></html>
`))

// RenderHTML renders the digest as an HTML e-mail body. Record fields are escaped.
func RenderHTML(d Digest, links Links) (string, error) {
	var buf bytes.Buffer

	data := struct {
		Digest
		Links Links
	}{d, links}

	if err := digestTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}

	return buf.String(), nil
}

// RenderText renders the digest as plain text with a markdown table.
func RenderText(d Digest) string {
	var sb strings.Builder

	sb.WriteString("Weekly Digest: " + d.Label + "\n\n")

	if d.Summary != "" {
		sb.WriteString(d.Summary + "\n\n")
	}

	if len(d.Records) == 0 {
		sb.WriteString("No new press releases this period.\n")

		return sb.String()
	}

	sb.WriteString(formatter.RecordsTable(d.Records, []string{
		models.ColumnDate, models.ColumnCompany, models.ColumnTitle, models.ColumnLink,
	}))

	return sb.String()
}
