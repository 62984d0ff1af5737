package alert

import (
	"context"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/pkg/logger"
)

// LogSink writes alerts to the structured log. It is always installed.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log.With("security_alert")}
}

func (s *LogSink) Name() string                { return "log" }
func (s *LogSink) MinSeverity() model.Severity { return model.SeverityLow }

func (s *LogSink) Send(_ context.Context, alert *model.Alert) error {
	zl := s.logger.Zerolog()
	event := zl.Warn()
	if alert.Severity.AtLeast(model.SeverityHigh) {
		event = zl.Error()
	}
	event.
		Str("alert_id", alert.ID.String()).
		Str("severity", string(alert.Severity)).
		Str("title", alert.Title).
		Fields(alert.Metadata).
		Msg(alert.Message)
	return nil
}
