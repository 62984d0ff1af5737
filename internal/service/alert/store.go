package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/repository"
)

// StoreSink keeps a queryable history of alerts in the security event log.
type StoreSink struct {
	repo repository.SecurityEventRepository
}

func NewStoreSink(repo repository.SecurityEventRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Name() string                { return "store" }
func (s *StoreSink) MinSeverity() model.Severity { return model.SeverityLow }

func (s *StoreSink) Send(ctx context.Context, alert *model.Alert) error {
	event, err := ToSecurityEvent(alert)
	if err != nil {
		return err
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to store security event: %w", err)
	}
	return nil
}

func ToSecurityEvent(alert *model.Alert) (*model.SecurityEvent, error) {
	metadata := json.RawMessage(`{}`)
	if len(alert.Metadata) > 0 {
		raw, err := json.Marshal(alert.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode alert metadata: %w", err)
		}
		metadata = raw
	}
	return &model.SecurityEvent{
		ID:        alert.ID,
		Severity:  alert.Severity,
		Title:     alert.Title,
		Message:   alert.Message,
		Metadata:  metadata,
		CreatedAt: alert.CreatedAt,
	}, nil
}
