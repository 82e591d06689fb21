package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	config "github.com/growlytics/socialsync/configs"
	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/transfer"
	"github.com/growlytics/socialsync/pkg/crypto"
)

const facebookAPIBase = "https://graph.facebook.com/v18.0"

// syncLookback bounds how far back a metrics sync fetches posts.
const syncLookback = 7 * 24 * time.Hour

type FacebookService interface {
	PublishTextPost(ctx context.Context, params PublishParams) (string, error)
	PublishPhotoPost(ctx context.Context, params PublishParams) (string, error)
	PublishMultiPhotoPost(ctx context.Context, params PublishParams) (string, error)
	PublishVideoPost(ctx context.Context, params PublishParams) (string, error)
	CollectRecentPosts(ctx context.Context, accountID int64, since *time.Time) ([]transfer.FacebookPost, error)
	CollectPostMetrics(ctx context.Context, accountID int64, platformPostID string) (*transfer.FacebookPostMetrics, error)
	CollectPageMetrics(ctx context.Context, accountID int64) (*transfer.FacebookPageMetrics, error)
	CollectAudienceInsights(ctx context.Context, accountID int64) (map[string]json.RawMessage, error)
	CollectComments(ctx context.Context, accountID int64, platformPostID string) ([]transfer.FacebookComment, error)
	ReplyToComment(ctx context.Context, accountID int64, commentID, message string) (string, error)
	SyncAccount(ctx context.Context, accountID int64) (*SyncResult, error)
}

type facebookService struct {
	cfg     config.Config
	sa      repository.SocialAccountRepository
	sm      repository.SocialMetricRepository
	sc      repository.SocialCommentRepository
	sl      repository.SyncLogRepository
	vault   *crypto.Vault
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

func NewFacebookService(
	cfg config.Config,
	sa repository.SocialAccountRepository,
	sm repository.SocialMetricRepository,
	sc repository.SocialCommentRepository,
	sl repository.SyncLogRepository,
	vault *crypto.Vault) FacebookService {
	return &facebookService{
		cfg:     cfg,
		sa:      sa,
		sm:      sm,
		sc:      sc,
		sl:      sl,
		vault:   vault,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		baseURL: facebookAPIBase,
	}
}

func (s *facebookService) getAccount(ctx context.Context, accountID int64) (*resolvedAccount, error) {
	return resolveAccount(ctx, s.sa, s.vault, accountID)
}

// PublishTextPost posts a plain message to the page feed. A ScheduledAt in
// params defers publication on the platform side via scheduled_publish_time.
func (s *facebookService) PublishTextPost(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"message":      params.Content,
		"access_token": account.AccessToken,
	}
	applySchedule(payload, params.ScheduledAt)

	return s.postForID(ctx, fmt.Sprintf("%s/%s/feed", s.baseURL, account.AccountID), payload)
}

func (s *facebookService) PublishPhotoPost(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) == 0 {
		return "", errors.New("media url is required for photo posts")
	}

	payload := map[string]interface{}{
		"url":          params.MediaURLs[0],
		"caption":      params.Content,
		"access_token": account.AccessToken,
	}
	applySchedule(payload, params.ScheduledAt)

	return s.postForID(ctx, fmt.Sprintf("%s/%s/photos", s.baseURL, account.AccountID), payload)
}

// PublishMultiPhotoPost uploads every photo unpublished first, then creates
// one feed post attaching all of them.
func (s *facebookService) PublishMultiPhotoPost(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) == 0 {
		return "", errors.New("media urls are required")
	}

	photoIDs := make([]string, 0, len(params.MediaURLs))
	for _, mediaURL := range params.MediaURLs {
		id, err := s.postForID(ctx, fmt.Sprintf("%s/%s/photos", s.baseURL, account.AccountID), map[string]interface{}{
			"url":          mediaURL,
			"published":    false,
			"access_token": account.AccessToken,
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload photo: %w", err)
		}
		photoIDs = append(photoIDs, id)
	}

	attached := make([]map[string]string, 0, len(photoIDs))
	for _, id := range photoIDs {
		attached = append(attached, map[string]string{"media_fbid": id})
	}

	payload := map[string]interface{}{
		"message":        params.Content,
		"attached_media": attached,
		"access_token":   account.AccessToken,
	}
	applySchedule(payload, params.ScheduledAt)

	return s.postForID(ctx, fmt.Sprintf("%s/%s/feed", s.baseURL, account.AccountID), payload)
}

func (s *facebookService) PublishVideoPost(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) == 0 {
		return "", errors.New("media url is required for video posts")
	}

	payload := map[string]interface{}{
		"file_url":     params.MediaURLs[0],
		"description":  params.Content,
		"access_token": account.AccessToken,
	}
	applySchedule(payload, params.ScheduledAt)

	return s.postForID(ctx, fmt.Sprintf("%s/%s/videos", s.baseURL, account.AccountID), payload)
}

func (s *facebookService) CollectRecentPosts(ctx context.Context, accountID int64, since *time.Time) ([]transfer.FacebookPost, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", "id,message,created_time,full_picture,permalink_url,shares,comments.summary(true),reactions.summary(true)")
	params.Set("access_token", account.AccessToken)
	params.Set("limit", "100")
	if since != nil {
		params.Set("since", strconv.FormatInt(since.Unix(), 10))
	}

	var result struct {
		Data []transfer.FacebookPost `json:"data"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s/posts", s.baseURL, account.AccountID), params, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

func (s *facebookService) CollectPostMetrics(ctx context.Context, accountID int64, platformPostID string) (*transfer.FacebookPostMetrics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	insightNames := []string{
		"post_impressions",
		"post_engaged_users",
		"post_reactions_like_total",
		"post_reactions_love_total",
		"post_reactions_wow_total",
		"post_reactions_haha_total",
		"post_reactions_sorry_total",
		"post_reactions_anger_total",
		"post_clicks",
	}

	params := url.Values{}
	params.Set("metric", strings.Join(insightNames, ","))
	params.Set("access_token", account.AccessToken)

	var insights insightsResponse
	if err := s.get(ctx, fmt.Sprintf("%s/%s/insights", s.baseURL, platformPostID), params, &insights); err != nil {
		return nil, err
	}

	values := insights.firstValues()

	metrics := &transfer.FacebookPostMetrics{
		PostImpressions:         values["post_impressions"],
		PostEngagedUsers:        values["post_engaged_users"],
		PostReactionsLikeTotal:  values["post_reactions_like_total"],
		PostReactionsLoveTotal:  values["post_reactions_love_total"],
		PostReactionsWowTotal:   values["post_reactions_wow_total"],
		PostReactionsHahaTotal:  values["post_reactions_haha_total"],
		PostReactionsSorryTotal: values["post_reactions_sorry_total"],
		PostReactionsAngerTotal: values["post_reactions_anger_total"],
		PostClicks:              values["post_clicks"],
	}

	// Shares and the comment count live on the post object, not insights.
	summaryParams := url.Values{}
	summaryParams.Set("fields", "shares,comments.summary(true)")
	summaryParams.Set("access_token", account.AccessToken)

	var postData struct {
		Shares struct {
			Count int64 `json:"count"`
		} `json:"shares"`
		Comments struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s", s.baseURL, platformPostID), summaryParams, &postData); err != nil {
		return nil, err
	}

	metrics.PostComments = postData.Comments.Summary.TotalCount
	metrics.PostShares = postData.Shares.Count

	return metrics, nil
}

func (s *facebookService) CollectPageMetrics(ctx context.Context, accountID int64) (*transfer.FacebookPageMetrics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "page_fans,page_fan_adds,page_impressions,page_engaged_users,page_post_engagements")
	params.Set("period", "day")
	params.Set("access_token", account.AccessToken)

	var insights insightsResponse
	if err := s.get(ctx, fmt.Sprintf("%s/%s/insights", s.baseURL, account.AccountID), params, &insights); err != nil {
		return nil, err
	}

	values := insights.lastValues()

	return &transfer.FacebookPageMetrics{
		PageFans:            values["page_fans"],
		PageFanAdds:         values["page_fan_adds"],
		PageImpressions:     values["page_impressions"],
		PageEngagedUsers:    values["page_engaged_users"],
		PagePostEngagements: values["page_post_engagements"],
	}, nil
}

// CollectAudienceInsights returns the raw demographic breakdowns keyed by
// insight name. The nested payloads vary by page, so they stay raw JSON and
// land in a single audience_demographics metric row.
func (s *facebookService) CollectAudienceInsights(ctx context.Context, accountID int64) (map[string]json.RawMessage, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "page_fans_country,page_fans_city,page_fans_gender_age")
	params.Set("access_token", account.AccessToken)

	var result struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value json.RawMessage `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s/insights", s.baseURL, account.AccountID), params, &result); err != nil {
		return nil, err
	}

	insights := make(map[string]json.RawMessage)
	for _, metric := range result.Data {
		if len(metric.Values) > 0 {
			insights[metric.Name] = metric.Values[0].Value
		}
	}

	return insights, nil
}

func (s *facebookService) CollectComments(ctx context.Context, accountID int64, platformPostID string) ([]transfer.FacebookComment, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", "id,from,message,created_time,like_count,parent")
	params.Set("access_token", account.AccessToken)
	params.Set("limit", "100")

	var result struct {
		Data []transfer.FacebookComment `json:"data"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s/comments", s.baseURL, platformPostID), params, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

func (s *facebookService) ReplyToComment(ctx context.Context, accountID int64, commentID, message string) (string, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	return s.postForID(ctx, fmt.Sprintf("%s/%s/comments", s.baseURL, commentID), map[string]interface{}{
		"message":      message,
		"access_token": account.AccessToken,
	})
}

// SyncAccount pulls recent posts, their metrics and comments, page metrics
// and audience insights. One broken post is recorded in Errors and skipped;
// only account-scope failures abort the pass.
func (s *facebookService) SyncAccount(ctx context.Context, accountID int64) (*SyncResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	itemsProcessed := 0
	var syncErrors []models.SyncError

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-syncLookback)
	posts, err := s.CollectRecentPosts(ctx, accountID, &since)
	if err != nil {
		s.writeSyncLog(ctx, account, runID, models.SyncStatusFailed, itemsProcessed,
			[]models.SyncError{{Error: err.Error()}}, startTime)
		return nil, err
	}
	itemsProcessed += len(posts)

	for _, post := range posts {
		metrics, err := s.CollectPostMetrics(ctx, accountID, post.ID)
		if err != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: post.ID, Error: err.Error()})
			continue
		}
		if err := s.saveMetrics(ctx, account, post.ID, metrics); err != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: post.ID, Error: err.Error()})
			continue
		}

		comments, err := s.CollectComments(ctx, accountID, post.ID)
		if err != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: post.ID, Error: err.Error()})
			continue
		}
		for _, comment := range comments {
			if err := s.sc.Upsert(ctx, &models.SocialComment{
				OrganizationID:    account.OrganizationID,
				PlatformPostID:    post.ID,
				Platform:          models.PlatformFacebook,
				PlatformCommentID: comment.ID,
				AuthorID:          comment.From.ID,
				AuthorName:        comment.From.Name,
				Content:           comment.Message,
				LikesCount:        comment.LikeCount,
				PublishedAt:       comment.CreatedTime,
			}); err != nil {
				slog.Info(err.Error())
			}
		}
		itemsProcessed += len(comments)
	}

	pageMetrics, err := s.CollectPageMetrics(ctx, accountID)
	if err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	} else if err := s.saveMetrics(ctx, account, "", pageMetrics); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	}

	if audience, err := s.CollectAudienceInsights(ctx, accountID); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	} else if payload, err := json.Marshal(audience); err == nil {
		if err := s.sm.Insert(ctx, &models.SocialMetric{
			OrganizationID:  account.OrganizationID,
			SocialAccountID: account.ID,
			Platform:        models.PlatformFacebook,
			MetricType:      models.MetricTypeAudienceDemographics,
			Value:           "0",
			Metadata:        payload,
		}); err != nil {
			slog.Info(err.Error())
		}
	}

	status := models.SyncStatusSuccess
	if len(syncErrors) > 0 {
		status = models.SyncStatusPartial
	}
	s.writeSyncLog(ctx, account, runID, status, itemsProcessed, syncErrors, startTime)

	return &SyncResult{
		Success:        len(syncErrors) == 0,
		ItemsProcessed: itemsProcessed,
		Errors:         syncErrors,
	}, nil
}

func (s *facebookService) saveMetrics(ctx context.Context, account *resolvedAccount, platformPostID string, metrics interface{}) error {
	for name, value := range metricRows(metrics) {
		if err := s.sm.Insert(ctx, &models.SocialMetric{
			OrganizationID:  account.OrganizationID,
			SocialAccountID: account.ID,
			PlatformPostID:  platformPostID,
			Platform:        models.PlatformFacebook,
			MetricType:      name,
			Value:           value,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *facebookService) writeSyncLog(ctx context.Context, account *resolvedAccount, runID, status string, itemsProcessed int, syncErrors []models.SyncError, startTime time.Time) {
	if err := s.sl.Insert(ctx, &models.SocialSyncLog{
		RunID:           runID,
		OrganizationID:  account.OrganizationID,
		SocialAccountID: account.ID,
		SyncType:        models.SyncTypeMetrics,
		Status:          status,
		ItemsProcessed:  itemsProcessed,
		Errors:          syncErrors,
		CompletedAt:     time.Now(),
		DurationMs:      time.Since(startTime).Milliseconds(),
	}); err != nil {
		slog.Info(err.Error())
	}
}

func (s *facebookService) postForID(ctx context.Context, endpoint string, payload map[string]interface{}) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := decodeResponse(models.PlatformFacebook, resp, &result); err != nil {
		return "", err
	}

	if result.ID == "" {
		return "", errors.New("no id returned from Facebook")
	}

	return result.ID, nil
}

func (s *facebookService) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}

	return decodeResponse(models.PlatformFacebook, resp, out)
}

func applySchedule(payload map[string]interface{}, scheduledAt *time.Time) {
	if scheduledAt == nil {
		return
	}
	payload["scheduled_publish_time"] = scheduledAt.Unix()
	payload["published"] = false
}

// insightsResponse is the common graph insights envelope.
type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

func (r *insightsResponse) firstValues() map[string]int64 {
	values := make(map[string]int64)
	for _, metric := range r.Data {
		if len(metric.Values) > 0 {
			values[metric.Name] = metric.Values[0].Value
		}
	}
	return values
}

// lastValues picks the newest point of a day-period series.
func (r *insightsResponse) lastValues() map[string]int64 {
	values := make(map[string]int64)
	for _, metric := range r.Data {
		if len(metric.Values) > 0 {
			values[metric.Name] = metric.Values[len(metric.Values)-1].Value
		}
	}
	return values
}
