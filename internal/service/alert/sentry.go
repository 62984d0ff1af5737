package alert

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/jwalitptl/risk-api/internal/model"
)

// InitSentry configures the global sentry client. An empty dsn leaves sentry disabled.
func InitSentry(dsn, environment string) (bool, error) {
	if dsn == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: false,
	})
	return err == nil, err
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// SentrySink raises alerts as sentry messages.
type SentrySink struct {
	hub         *sentry.Hub
	minSeverity model.Severity
}

func NewSentrySink(hub *sentry.Hub, minSeverity model.Severity) *SentrySink {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if minSeverity == "" {
		minSeverity = model.SeverityHigh
	}
	return &SentrySink{hub: hub, minSeverity: minSeverity}
}

func (s *SentrySink) Name() string                { return "sentry" }
func (s *SentrySink) MinSeverity() model.Severity { return s.minSeverity }

func (s *SentrySink) Send(_ context.Context, alert *model.Alert) error {
	hub := s.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(alert.Severity))
		scope.SetTag("alert_id", alert.ID.String())
		scope.SetTag("severity", string(alert.Severity))
		scope.SetContext("alert", sentry.Context(alert.Metadata))
		hub.CaptureMessage(alert.Title + ": " + alert.Message)
	})
	return nil
}

func sentryLevel(s model.Severity) sentry.Level {
	switch s {
	case model.SeverityCritical:
		return sentry.LevelFatal
	case model.SeverityHigh:
		return sentry.LevelError
	case model.SeverityMedium:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
