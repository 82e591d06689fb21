package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/growlytics/socialsync/internal/models"
)

type SyncLogRepository interface {
	Insert(ctx context.Context, l *models.SocialSyncLog) error
}

type syncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Insert(ctx context.Context, l *models.SocialSyncLog) error {
	query := `
		INSERT INTO social_sync_logs(
			run_id,
			organization_id,
			social_account_id,
			sync_type,
			status,
			items_processed,
			errors,
			completed_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		l.RunID,
		l.OrganizationID,
		l.SocialAccountID,
		l.SyncType,
		l.Status,
		l.ItemsProcessed,
		l.ErrorsJSON(),
		l.CompletedAt,
		l.DurationMs,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
