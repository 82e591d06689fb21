package transfer

import "time"

type YoutubeToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type YoutubeChannel struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	ThumbnailURL   string `json:"thumbnail_url"`
	SubscriberCount uint64 `json:"subscriber_count"`
}

type YoutubeVideoMetrics struct {
	Views                 int64   `metric:"views"`
	Likes                 int64   `metric:"likes"`
	Dislikes              int64   `metric:"dislikes"`
	Comments              int64   `metric:"comments"`
	Shares                int64   `metric:"shares"`
	AverageViewDuration   float64 `metric:"averageViewDuration"`
	AverageViewPercentage float64 `metric:"averageViewPercentage"`
	SubscribersGained     int64   `metric:"subscribersGained"`
	SubscribersLost       int64   `metric:"subscribersLost"`
}

type YoutubeChannelMetrics struct {
	SubscriberCount int64 `metric:"subscriberCount"`
	VideoCount      int64 `metric:"videoCount"`
	ViewCount       int64 `metric:"viewCount"`
}

type YoutubeChannelAnalytics struct {
	Analytics      [][]any `json:"analytics"`
	TrafficSources [][]any `json:"trafficSources"`
	Demographics   struct {
		Demographics [][]any `json:"demographics"`
		Geography    [][]any `json:"geography"`
	} `json:"demographics"`
}
