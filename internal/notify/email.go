package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gomail "gopkg.in/mail.v2"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// EmailConfig holds SMTP configuration for sending reports.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmails   []string
	Timeout    time.Duration
}

var (
	markdown  = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Linkify))
	// Reports quote filing text verbatim.
	sanitizer = bluemonday.UGCPolicy()
)

// EmailSender delivers the report by SMTP as plain Markdown with an HTML
// alternative and the Markdown file attached.
type EmailSender struct {
	cfg  EmailConfig
	send func(*gomail.Message) error
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	dialer.Timeout = cfg.Timeout
	return &EmailSender{cfg: cfg, send: func(m *gomail.Message) error { return dialer.DialAndSend(m) }}
}

func (s *EmailSender) Name() string { return "email" }

// Notify sends the report of one run.
func (s *EmailSender) Notify(_ context.Context, result *models.RunResult, report string) error {
	msg, err := s.buildMessage(result, report)
	if err != nil {
		return err
	}
	if err := s.send(msg); err != nil {
		return fmt.Errorf("failed to send email to %v: %w", s.cfg.ToEmails, err)
	}
	return nil
}

func subject(result *models.RunResult) string {
	n := len(result.Deals)
	noun := "deals"
	if n == 1 {
		noun = "deal"
	}
	return fmt.Sprintf("Tender offer arbitrage %s: %d %s", result.Summary.Today, n, noun)
}

func (s *EmailSender) buildMessage(result *models.RunResult, report string) (*gomail.Message, error) {
	html, err := renderHTML(report)
	if err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", s.cfg.ToEmails...)
	m.SetHeader("Subject", subject(result))
	m.SetBody("text/plain", report)
	m.AddAlternative("text/html", html)

	attachment := []byte(report)
	m.Attach(fmt.Sprintf("report-%s.md", result.Summary.Today), gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(attachment)
		return err
	}))
	return m, nil
}

func renderHTML(report string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(report), &body); err != nil {
		return "", fmt.Errorf("failed to render report HTML: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8" /></head><body>`)
	buf.Write(sanitizer.SanitizeBytes(body.Bytes()))
	buf.WriteString("</body></html>")
	return buf.String(), nil
}
