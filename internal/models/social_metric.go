package models

import (
	"encoding/json"
	"time"
)

// SocialMetric is one observation in the append-only metrics time series.
// metric_type keeps each platform's native vocabulary; no cross-platform
// unification happens at this layer.
type SocialMetric struct {
	ID              int64           `db:"id" json:"id"`
	OrganizationID  int64           `db:"organization_id" json:"organization_id"`
	SocialAccountID int64           `db:"social_account_id" json:"social_account_id"`
	PlatformPostID  string          `db:"platform_post_id" json:"platform_post_id"`
	Platform        string          `db:"platform" json:"platform"`
	MetricType      string          `db:"metric_type" json:"metric_type"`
	Value           string          `db:"value" json:"value"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata"`
	RecordedAt      time.Time       `db:"recorded_at" json:"recorded_at"`
}

// Synthetic metric types whose real payload lives in the metadata column.
const (
	MetricTypeAudienceDemographics = "audience_demographics"
	MetricTypeChannelAnalytics     = "channel_analytics"
)
