package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/risk-api/internal/model"
)

type EmailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	To          []string
	MinSeverity model.Severity
}

// Mailer is the part of gomail.Dialer the sink uses.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSink mails operators about escalations.
type EmailSink struct {
	mailer Mailer
	config EmailConfig
}

func NewEmailSink(config EmailConfig) *EmailSink {
	return NewEmailSinkWithMailer(config, gomail.NewDialer(config.Host, config.Port, config.Username, config.Password))
}

func NewEmailSinkWithMailer(config EmailConfig, mailer Mailer) *EmailSink {
	if config.MinSeverity == "" {
		config.MinSeverity = model.SeverityHigh
	}
	return &EmailSink{mailer: mailer, config: config}
}

func (s *EmailSink) Name() string                { return "email" }
func (s *EmailSink) MinSeverity() model.Severity { return s.config.MinSeverity }

func (s *EmailSink) Send(ctx context.Context, alert *model.Alert) error {
	if len(s.config.To) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", s.config.To...)
	m.SetHeader("Subject", Subject(alert))
	m.SetBody("text/plain", Body(alert))

	// gomail has no context support; give up waiting when ctx expires.
	done := make(chan error, 1)
	go func() {
		done <- s.mailer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send alert email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func Subject(alert *model.Alert) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)
}

func Body(alert *model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", alert.Message)
	fmt.Fprintf(&b, "Alert ID: %s\n", alert.ID)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&b, "Time: %s\n", alert.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	keys := make([]string, 0, len(alert.Metadata))
	for k := range alert.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, alert.Metadata[k])
	}
	return b.String()
}
