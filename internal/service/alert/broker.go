package alert

import (
	"context"
	"fmt"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/pkg/messaging"
)

// BrokerSink publishes alerts for other services (chat bots, dashboards) to consume.
type BrokerSink struct {
	broker      messaging.Broker
	channel     string
	minSeverity model.Severity
}

func NewBrokerSink(broker messaging.Broker, channel string, minSeverity model.Severity) *BrokerSink {
	if channel == "" {
		channel = "security.alerts"
	}
	if minSeverity == "" {
		minSeverity = model.SeverityMedium
	}
	return &BrokerSink{broker: broker, channel: channel, minSeverity: minSeverity}
}

func (s *BrokerSink) Name() string                { return "broker" }
func (s *BrokerSink) MinSeverity() model.Severity { return s.minSeverity }

func (s *BrokerSink) Send(ctx context.Context, alert *model.Alert) error {
	if err := s.broker.Publish(ctx, s.channel, alert); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}
