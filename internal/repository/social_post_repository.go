package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/growlytics/socialsync/internal/models"
)

type SocialPostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialPost, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.SocialPost, error)
	SetStatus(ctx context.Context, id int64, status string) error
	MarkPublished(ctx context.Context, id int64, platformPostID string, publishedAt time.Time) error
	MarkPublishFailure(ctx context.Context, id int64, status, errorMessage string, retryCount int) error
}

type socialPostRepository struct {
	db *sql.DB
}

func NewSocialPostRepository(db *sql.DB) SocialPostRepository {
	return &socialPostRepository{db: db}
}

const postColumns = `id, organization_id, social_account_id, platform, post_type, content,
	media_urls, hashtags, scheduled_for, status, platform_post_id, published_at,
	retry_count, error_message, metadata, created_at, updated_at`

func (r *socialPostRepository) GetByID(ctx context.Context, id int64) (*models.SocialPost, error) {
	query := `SELECT ` + postColumns + ` FROM social_posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *socialPostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.SocialPost, error) {
	query := `SELECT ` + postColumns + `
		FROM social_posts
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.SocialPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return posts, nil
}

func (r *socialPostRepository) SetStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE social_posts SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialPostRepository) MarkPublished(ctx context.Context, id int64, platformPostID string, publishedAt time.Time) error {
	query := `
		UPDATE social_posts
		SET status = $2,
			platform_post_id = $3,
			published_at = $4,
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusPublished, platformPostID, publishedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialPostRepository) MarkPublishFailure(ctx context.Context, id int64, status, errorMessage string, retryCount int) error {
	query := `
		UPDATE social_posts
		SET status = $2,
			error_message = $3,
			retry_count = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, status, errorMessage, retryCount)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func scanPost(row rowScanner) (*models.SocialPost, error) {
	var post models.SocialPost
	var publishedAt sql.NullTime
	var metadata []byte

	err := row.Scan(&post.ID, &post.OrganizationID, &post.SocialAccountID, &post.Platform,
		&post.PostType, &post.Content, pq.Array(&post.MediaURLs), pq.Array(&post.Hashtags),
		&post.ScheduledFor, &post.Status, &post.PlatformPostID, &publishedAt,
		&post.RetryCount, &post.ErrorMessage, &metadata, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	post.Metadata = metadata

	return &post, nil
}
