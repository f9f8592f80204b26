package digest

import (
	"context"
	"errors"
	"net/smtp"
	"strings"

	"presswatch/internal/config"
	"presswatch/internal/logger"

	"github.com/jordan-wright/email"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("no recipients")

// Message is a rendered digest e-mail.
type Message struct {
	From    string
	Subject string
	HTML    string
	Text    string
	To      []string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(e *email.Email, addr string, a smtp.Auth) error

// SMTPSender delivers messages through an SMTP server. Recipients are
// placed in Bcc so subscribers do not see each other.
type SMTPSender struct {
	send sendFunc
	cfg  config.SMTPConfig
}

// NewSMTPSender creates a sender for the configured server.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg: cfg,
		send: func(e *email.Email, addr string, a smtp.Auth) error {
			return e.Send(addr, a)
		},
	}
}

// Send delivers msg. When the server does not offer AUTH the message is
// sent again without credentials.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = msg.From
	e.To = []string{msg.From}
	e.Bcc = msg.To
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)
	e.Text = []byte(msg.Text)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password(), s.cfg.Host)
	}

	err := s.send(e, s.cfg.Addr(), auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = s.send(e, s.cfg.Addr(), nil)
	}

	return err
}

// DryRunSender logs messages instead of sending them.
type DryRunSender struct {
	log *logger.Logger
}

// NewDryRunSender creates a sender that only logs.
func NewDryRunSender(l *logger.Logger) *DryRunSender {
	if l == nil {
		l = logger.NewNop()
	}

	return &DryRunSender{log: l}
}

// Send logs what would have been sent.
func (s *DryRunSender) Send(_ context.Context, msg Message) error {
	s.log.Info("dry run, digest not sent",
		"subject", msg.Subject,
		"recipients", len(msg.To),
		"bytes", len(msg.HTML),
	)

	return nil
}
