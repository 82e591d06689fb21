package transfer

import "time"

// InstagramPostMetrics covers feed posts, reels and carousels.
type InstagramPostMetrics struct {
	Impressions int64 `metric:"impressions"`
	Reach       int64 `metric:"reach"`
	Engagement  int64 `metric:"engagement"`
	Saved       int64 `metric:"saved"`
	VideoViews  int64 `metric:"video_views"`
	Likes       int64 `metric:"likes"`
	Comments    int64 `metric:"comments"`
}

type InstagramStoryMetrics struct {
	Impressions int64 `metric:"impressions"`
	Reach       int64 `metric:"reach"`
	Exits       int64 `metric:"exits"`
	Replies     int64 `metric:"replies"`
	TapsForward int64 `metric:"taps_forward"`
	TapsBack    int64 `metric:"taps_back"`
}

type InstagramAccountMetrics struct {
	Impressions   int64 `metric:"impressions"`
	Reach         int64 `metric:"reach"`
	ProfileViews  int64 `metric:"profile_views"`
	FollowerCount int64 `metric:"follower_count"`
	MediaCount    int64 `metric:"media_count"`
}

type InstagramMedia struct {
	ID           string `json:"id"`
	Caption      string `json:"caption"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	Permalink    string `json:"permalink"`
	Timestamp    string `json:"timestamp"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type InstagramComment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	LikeCount int       `json:"like_count"`
}
