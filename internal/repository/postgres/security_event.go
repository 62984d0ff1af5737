package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/repository"
)

const defaultListLimit = 100

type securityEventRepository struct {
	BaseRepository
}

func NewSecurityEventRepository(base BaseRepository) repository.SecurityEventRepository {
	return &securityEventRepository{base}
}

func (r *securityEventRepository) Create(ctx context.Context, event *model.SecurityEvent) error {
	query := `
        INSERT INTO security_events (
            id, severity, title, message, metadata, created_at
        ) VALUES (:id, :severity, :title, :message, :metadata, :created_at)
    `

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
			return fmt.Errorf("failed to insert security event: %w", err)
		}
		return nil
	})
}

func (r *securityEventRepository) List(ctx context.Context, filter model.SecurityEventFilter) ([]*model.SecurityEvent, error) {
	query, args := buildListQuery(filter)

	events := []*model.SecurityEvent{}
	if err := r.GetDB().SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	return events, nil
}

func (r *securityEventRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	query := `
        DELETE FROM security_events
        WHERE created_at < $1
    `

	result, err := r.GetDB().ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup security events: %w", err)
	}

	return result.RowsAffected()
}

func buildListQuery(filter model.SecurityEventFilter) (string, []interface{}) {
	query := `SELECT id, severity, title, message, metadata, created_at FROM security_events WHERE 1=1`
	var args []interface{}

	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	return query, args
}
