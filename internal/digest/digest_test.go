package digest

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"presswatch/internal/config"
	"presswatch/internal/models"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

func records() []models.Record {
	return []models.Record{
		{Company: "Nokia", Title: "Old news", Date: "2026-10-01", Link: "https://n.example/old"},
		{Company: "Ciena", Title: "Edge of window", Date: "2026-10-10", Link: "https://c.example/edge"},
		{Company: "Calix", Title: "Undated", Date: "Q4 2026", Link: "https://x.example/u"},
		{Company: "Adtran", Title: "<b>Bold</b> & launch", Date: "2026-10-16", Link: "https://a.example/new"},
		{Company: "ZTE", Title: "Today", Date: "2026-10-17", Link: "https://z.example/today"},
	}
}

func TestBuild_SelectsWindowNewestFirst(t *testing.T) {
	d := Build(records(), now, 7)

	var got []string
	for _, r := range d.Records {
		got = append(got, r.Title)
	}

	assert.Equal(t, []string{"Today", "<b>Bold</b> & launch", "Edge of window"}, got)
	assert.Equal(t, "Oct 10 - Oct 17, 2026", d.Label)
	assert.Empty(t, d.Summary)
	assert.Equal(t, "PressWatch Weekly Digest: Oct 10 - Oct 17, 2026", d.Subject(""))
}

func TestBuild_EmptyWindow(t *testing.T) {
	d := Build(records(), now.AddDate(1, 0, 0), 7)

	assert.Empty(t, d.Records)
	assert.Equal(t, EmptySummary, d.Summary)
}

func TestRenderHTML_EscapesAndLinks(t *testing.T) {
	d := Build(records(), now, 7)
	d.Summary = "Three launches."

	html, err := RenderHTML(d, Links{Dashboard: "https://pw.example", Unsubscribe: "https://pw.example/unsub"})
	require.NoError(t, err)

	assert.Contains(t, html, "Weekly Digest: Oct 10 - Oct 17, 2026")
	assert.Contains(t, html, "&lt;b&gt;Bold&lt;/b&gt; &amp; launch")
	assert.NotContains(t, html, "<b>Bold</b>")
	assert.Contains(t, html, `href="https://z.example/today"`)
	assert.Contains(t, html, `href="https://pw.example/unsub"`)
	assert.Contains(t, html, "Three launches.")
}

func TestRenderHTML_NoRecords(t *testing.T) {
	html, err := RenderHTML(Build(nil, now, 7), Links{})
	require.NoError(t, err)

	assert.Contains(t, html, "No new press releases this period.")
	assert.NotContains(t, html, "Unsubscribe")
}

func TestRenderText(t *testing.T) {
	text := RenderText(Build(records(), now, 7))

	assert.True(t, strings.HasPrefix(text, "Weekly Digest: Oct 10 - Oct 17, 2026\n\n"))
	assert.Contains(t, text, "| date       | company |")
	assert.Contains(t, text, "| 2026-10-17 | ZTE     | Today")
}

func TestLoadSubscribers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.csv")
	content := "\ufeffEmail,Active\n" +
		"b@zhone.example,true\n" +
		"a@zhone.example,yes\n" +
		"gone@zhone.example,false\n" +
		"B@zhone.example,1\n" +
		"blank@zhone.example,\n" +
		",true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := LoadSubscribers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@zhone.example", "b@zhone.example", "blank@zhone.example"}, got)
}

func TestLoadSubscribers_Errors(t *testing.T) {
	_, err := readSubscribers(strings.NewReader("name,active\nbob,true\n"))
	assert.ErrorIs(t, err, ErrNoEmailColumn)

	_, err = LoadSubscribers(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	got, err := readSubscribers(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecipients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.csv")
	require.NoError(t, os.WriteFile(path, []byte("email\nz@x.example\nboss@x.example\n"), 0644))

	got, err := Recipients([]string{"Boss@x.example", "ops@x.example"}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Boss@x.example", "ops@x.example", "z@x.example"}, got)

	got, err = Recipients([]string{"ops@x.example"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@x.example"}, got)
}

type sendCall struct {
	auth smtp.Auth
	addr string
	bcc  []string
}

func TestSMTPSender_RetriesWithoutAuth(t *testing.T) {
	var calls []sendCall

	s := NewSMTPSender(config.SMTPConfig{Host: "mail.example", Port: 25, Username: "presswatch"})
	s.send = func(e *email.Email, addr string, a smtp.Auth) error {
		calls = append(calls, sendCall{auth: a, addr: addr, bcc: e.Bcc})
		if a != nil {
			return errors.New("smtp: server doesn't support AUTH")
		}

		return nil
	}

	err := s.Send(context.Background(), Message{From: "pw@x.example", Subject: "s", To: []string{"a@x.example"}})
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.NotNil(t, calls[0].auth)
	assert.Nil(t, calls[1].auth)
	assert.Equal(t, "mail.example:25", calls[1].addr)
	assert.Equal(t, []string{"a@x.example"}, calls[1].bcc)
}

func TestSMTPSender_OtherErrorsAreReturned(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{Host: "mail.example", Port: 587, Username: "presswatch"})

	var n int

	s.send = func(*email.Email, string, smtp.Auth) error {
		n++

		return errors.New("535 authentication failed")
	}

	err := s.Send(context.Background(), Message{To: []string{"a@x.example"}})
	require.Error(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipients)
}

func TestDryRunSender(t *testing.T) {
	assert.NoError(t, NewDryRunSender(nil).Send(context.Background(), Message{Subject: "s"}))
}
