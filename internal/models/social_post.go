package models

import (
	"encoding/json"
	"time"
)

type SocialPost struct {
	ID              int64           `db:"id" json:"id"`
	OrganizationID  int64           `db:"organization_id" json:"organization_id"`
	SocialAccountID int64           `db:"social_account_id" json:"social_account_id"`
	Platform        string          `db:"platform" json:"platform"`
	PostType        string          `db:"post_type" json:"post_type"`
	Content         string          `db:"content" json:"content"`
	MediaURLs       []string        `db:"media_urls" json:"media_urls"`
	Hashtags        []string        `db:"hashtags" json:"hashtags"`
	ScheduledFor    time.Time       `db:"scheduled_for" json:"scheduled_for"`
	Status          string          `db:"status" json:"status"`
	PlatformPostID  string          `db:"platform_post_id" json:"platform_post_id"`
	PublishedAt     *time.Time      `db:"published_at" json:"published_at"`
	RetryCount      int             `db:"retry_count" json:"retry_count"`
	ErrorMessage    string          `db:"error_message" json:"error_message"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

const (
	PostTypePost     = "post"
	PostTypeStory    = "story"
	PostTypeVideo    = "video"
	PostTypeReel     = "reel"
	PostTypeShort    = "short"
	PostTypeCarousel = "carousel"
)

// MaxPublishRetries is the ceiling after which a failing post is marked
// failed instead of being rescheduled.
const MaxPublishRetries = 3

// PostMetadata holds the optional video-platform fields stored in the
// post's free-form metadata column.
type PostMetadata struct {
	Title         string `json:"title,omitempty"`
	PrivacyStatus string `json:"privacy_status,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
}

func (p *SocialPost) ParseMetadata() PostMetadata {
	var meta PostMetadata
	if len(p.Metadata) > 0 {
		_ = json.Unmarshal(p.Metadata, &meta)
	}
	return meta
}
