// Package notify delivers review decisions to applicants.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"

	mail "github.com/go-mail/mail/v2"
	"github.com/rs/zerolog"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

// SMTPConfig holds the outgoing mail settings. An empty Host disables mail.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	SkipTLSVerify bool
}

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

var reviewTemplate = template.Must(template.New("review").Parse(`<p>Hello {{.Name}},</p>
<p>your document <strong>{{.Filename}}</strong> has been <strong>{{.Status}}</strong>.</p>
{{- if .Note}}
<p>Reviewer note: {{.Note}}</p>
{{- end}}
<p>You can see all your documents in the applicant portal.</p>`))

// MailNotifier sends review decisions over SMTP.
type MailNotifier struct {
	sender sender
	from   string
	logger zerolog.Logger
}

func NewMailNotifier(cfg SMTPConfig, logger zerolog.Logger) *MailNotifier {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	return &MailNotifier{sender: d, from: cfg.From, logger: logger}
}

func (n *MailNotifier) ReviewDecided(ctx context.Context, owner *domain.Actor, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := renderReview(owner, doc)
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", owner.Email)
	m.SetHeader("Subject", fmt.Sprintf("Your document %s was %s", doc.Filename, doc.Status))
	m.SetBody("text/html", body)

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send review mail: %w", err)
	}
	n.logger.Debug().Str("document_id", doc.ID).Str("to", owner.Email).Msg("review mail sent")
	return nil
}

func renderReview(owner *domain.Actor, doc *domain.Document) (string, error) {
	var body bytes.Buffer
	if err := reviewTemplate.Execute(&body, map[string]string{
		"Name":     owner.FullName(),
		"Filename": doc.Filename,
		"Status":   string(doc.Status),
		"Note":     doc.ReviewNote,
	}); err != nil {
		return "", fmt.Errorf("render review mail: %w", err)
	}
	return body.String(), nil
}

// LogNotifier records decisions in the log when SMTP is not configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ReviewDecided(_ context.Context, owner *domain.Actor, doc *domain.Document) error {
	n.logger.Info().
		Str("document_id", doc.ID).
		Str("owner_id", owner.ID).
		Str("status", string(doc.Status)).
		Msg("review decided, mail delivery disabled")
	return nil
}
