package transfer

import "time"

type FacebookToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type FacebookPage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	Category    string `json:"category"`
	Picture     struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

type InstagramBusinessAccount struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// FacebookPostMetrics is the typed view of a post's insight values. It is
// narrowed to generic metric rows only at the persistence boundary.
type FacebookPostMetrics struct {
	PostImpressions         int64 `metric:"post_impressions"`
	PostEngagedUsers        int64 `metric:"post_engaged_users"`
	PostReactionsLikeTotal  int64 `metric:"post_reactions_like_total"`
	PostReactionsLoveTotal  int64 `metric:"post_reactions_love_total"`
	PostReactionsWowTotal   int64 `metric:"post_reactions_wow_total"`
	PostReactionsHahaTotal  int64 `metric:"post_reactions_haha_total"`
	PostReactionsSorryTotal int64 `metric:"post_reactions_sorry_total"`
	PostReactionsAngerTotal int64 `metric:"post_reactions_anger_total"`
	PostClicks              int64 `metric:"post_clicks"`
	PostComments            int64 `metric:"post_comments"`
	PostShares              int64 `metric:"post_shares"`
}

type FacebookPageMetrics struct {
	PageFans            int64 `metric:"page_fans"`
	PageFanAdds         int64 `metric:"page_fan_adds"`
	PageImpressions     int64 `metric:"page_impressions"`
	PageEngagedUsers    int64 `metric:"page_engaged_users"`
	PagePostEngagements int64 `metric:"page_post_engagements"`
}

type FacebookPost struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	FullPicture string `json:"full_picture"`
	Permalink   string `json:"permalink_url"`
}

type FacebookComment struct {
	ID   string `json:"id"`
	From struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	Message     string    `json:"message"`
	CreatedTime time.Time `json:"created_time"`
	LikeCount   int       `json:"like_count"`
}

type AdAccount struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AccountID     string `json:"account_id"`
	AccountStatus int    `json:"account_status"`
	Currency      string `json:"currency"`
	TimezoneName  string `json:"timezone_name"`
	Business      *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"business"`
}

type AdAccountMetadata struct {
	AdAccountID   string `json:"adAccountId"`
	AdAccountName string `json:"adAccountName"`
	Currency      string `json:"currency"`
	Timezone      string `json:"timezone"`
	BusinessID    string `json:"businessId,omitempty"`
	BusinessName  string `json:"businessName,omitempty"`
	ConfiguredAt  string `json:"configuredAt,omitempty"`
}
