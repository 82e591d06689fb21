package models

import "time"

type SocialComment struct {
	ID                int64     `db:"id" json:"id"`
	OrganizationID    int64     `db:"organization_id" json:"organization_id"`
	PlatformPostID    string    `db:"platform_post_id" json:"platform_post_id"`
	Platform          string    `db:"platform" json:"platform"`
	PlatformCommentID string    `db:"platform_comment_id" json:"platform_comment_id"`
	AuthorID          string    `db:"author_id" json:"author_id"`
	AuthorName        string    `db:"author_name" json:"author_name"`
	AuthorUsername    string    `db:"author_username" json:"author_username"`
	AuthorAvatarURL   string    `db:"author_avatar_url" json:"author_avatar_url"`
	Content           string    `db:"content" json:"content"`
	LikesCount        int       `db:"likes_count" json:"likes_count"`
	PublishedAt       time.Time `db:"published_at" json:"published_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
