package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/growlytics/socialsync/internal/models"
)

type SocialCommentRepository interface {
	Upsert(ctx context.Context, c *models.SocialComment) error
}

type socialCommentRepository struct {
	db *sql.DB
}

func NewSocialCommentRepository(db *sql.DB) SocialCommentRepository {
	return &socialCommentRepository{db: db}
}

// Upsert is keyed on (platform, platform_comment_id) so repeated syncs
// refresh like counts instead of inserting duplicate rows.
func (r *socialCommentRepository) Upsert(ctx context.Context, c *models.SocialComment) error {
	query := `
		INSERT INTO social_comments(
			organization_id,
			platform_post_id,
			platform,
			platform_comment_id,
			author_id,
			author_name,
			author_username,
			author_avatar_url,
			content,
			likes_count,
			published_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (platform, platform_comment_id) DO UPDATE
		SET content = EXCLUDED.content,
			likes_count = EXCLUDED.likes_count
	`

	_, err := r.db.ExecContext(ctx, query,
		c.OrganizationID,
		c.PlatformPostID,
		c.Platform,
		c.PlatformCommentID,
		c.AuthorID,
		c.AuthorName,
		c.AuthorUsername,
		c.AuthorAvatarURL,
		c.Content,
		c.LikesCount,
		c.PublishedAt,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
