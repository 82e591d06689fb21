package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/growlytics/socialsync/internal/models"
)

// SocialMetricRepository is append-only: every sync inserts fresh rows so the
// table stays a time series. No update or delete path exists.
type SocialMetricRepository interface {
	Insert(ctx context.Context, m *models.SocialMetric) error
}

type socialMetricRepository struct {
	db *sql.DB
}

func NewSocialMetricRepository(db *sql.DB) SocialMetricRepository {
	return &socialMetricRepository{db: db}
}

func (r *socialMetricRepository) Insert(ctx context.Context, m *models.SocialMetric) error {
	query := `
		INSERT INTO social_metrics(
			organization_id,
			social_account_id,
			platform_post_id,
			platform,
			metric_type,
			value,
			metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	metadata := m.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("null")
	}

	_, err := r.db.ExecContext(ctx, query,
		m.OrganizationID,
		m.SocialAccountID,
		m.PlatformPostID,
		m.Platform,
		m.MetricType,
		m.Value,
		metadata,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
