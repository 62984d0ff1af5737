package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/risk-api/internal/model"
)

type (
	// SecurityEventRepository persists alerts raised by the login guard.
	SecurityEventRepository interface {
		Create(ctx context.Context, event *model.SecurityEvent) error
		List(ctx context.Context, filter model.SecurityEventFilter) ([]*model.SecurityEvent, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}
)
