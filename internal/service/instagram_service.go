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
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	config "github.com/growlytics/socialsync/configs"
	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/transfer"
	"github.com/growlytics/socialsync/pkg/crypto"
	"github.com/growlytics/socialsync/pkg/poll"
)

// Instagram publishing is a two-phase flow against the Facebook graph: first
// create a media container, then publish it. Videos additionally need the
// container's processing to finish before the publish call is accepted.
type InstagramService interface {
	PublishPhotoPost(ctx context.Context, params PublishParams) (string, error)
	PublishVideoPost(ctx context.Context, params PublishParams) (string, error)
	PublishCarouselPost(ctx context.Context, params PublishParams) (string, error)
	PublishStory(ctx context.Context, params PublishParams) (string, error)
	CollectRecentPosts(ctx context.Context, accountID int64, limit int) ([]transfer.InstagramMedia, error)
	CollectPostMetrics(ctx context.Context, accountID int64, mediaID string) (*transfer.InstagramPostMetrics, error)
	CollectStoryMetrics(ctx context.Context, accountID int64, mediaID string) (*transfer.InstagramStoryMetrics, error)
	CollectAccountMetrics(ctx context.Context, accountID int64) (*transfer.InstagramAccountMetrics, error)
	CollectAudienceInsights(ctx context.Context, accountID int64) (map[string]json.RawMessage, error)
	CollectComments(ctx context.Context, accountID int64, mediaID string) ([]transfer.InstagramComment, error)
	ReplyToComment(ctx context.Context, accountID int64, commentID, message string) (string, error)
	SyncAccount(ctx context.Context, accountID int64) (*SyncResult, error)
}

type instagramService struct {
	cfg      config.Config
	sa       repository.SocialAccountRepository
	sm       repository.SocialMetricRepository
	sc       repository.SocialCommentRepository
	sl       repository.SyncLogRepository
	vault    *crypto.Vault
	client   *http.Client
	limiter  *rate.Limiter
	baseURL  string
	pollConf poll.Config
}

func NewInstagramService(
	cfg config.Config,
	sa repository.SocialAccountRepository,
	sm repository.SocialMetricRepository,
	sc repository.SocialCommentRepository,
	sl repository.SyncLogRepository,
	vault *crypto.Vault) InstagramService {
	return &instagramService{
		cfg:      cfg,
		sa:       sa,
		sm:       sm,
		sc:       sc,
		sl:       sl,
		vault:    vault,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
		baseURL:  facebookAPIBase,
		pollConf: poll.DefaultConfig(),
	}
}

func (s *instagramService) getAccount(ctx context.Context, accountID int64) (*resolvedAccount, error) {
	return resolveAccount(ctx, s.sa, s.vault, accountID)
}

type containerParams struct {
	mediaType      string
	mediaURL       string
	caption        string
	isCarouselItem bool
	children       []string
}

// createMediaContainer is phase one: the media is staged platform-side but
// nothing is visible until media_publish.
func (s *instagramService) createMediaContainer(ctx context.Context, igUserID, accessToken string, p containerParams) (string, error) {
	payload := map[string]interface{}{
		"access_token": accessToken,
	}

	switch p.mediaType {
	case "IMAGE":
		payload["image_url"] = p.mediaURL
	case "VIDEO":
		payload["media_type"] = "VIDEO"
		payload["video_url"] = p.mediaURL
	case "CAROUSEL_ALBUM":
		payload["media_type"] = "CAROUSEL_ALBUM"
		payload["children"] = p.children
	case "STORIES":
		payload["media_type"] = "STORIES"
		if isVideoURL(p.mediaURL) {
			payload["video_url"] = p.mediaURL
		} else {
			payload["image_url"] = p.mediaURL
		}
	}

	if p.caption != "" {
		payload["caption"] = p.caption
	}
	if p.isCarouselItem {
		payload["is_carousel_item"] = true
	}

	return s.postForID(ctx, fmt.Sprintf("%s/%s/media", s.baseURL, igUserID), payload)
}

// publishMediaContainer is phase two.
func (s *instagramService) publishMediaContainer(ctx context.Context, igUserID, accessToken, creationID string) (string, error) {
	return s.postForID(ctx, fmt.Sprintf("%s/%s/media_publish", s.baseURL, igUserID), map[string]interface{}{
		"creation_id":  creationID,
		"access_token": accessToken,
	})
}

// waitForProcessing polls the container's status_code until FINISHED. The
// backoff is jittered and deadline-bounded so a stuck encode fails with a
// processing-timeout error instead of spinning.
func (s *instagramService) waitForProcessing(ctx context.Context, containerID, accessToken string) error {
	err := poll.Until(ctx, s.pollConf, func(ctx context.Context) (bool, error) {
		params := url.Values{}
		params.Set("fields", "status_code")
		params.Set("access_token", accessToken)

		var result struct {
			StatusCode string `json:"status_code"`
		}
		if err := s.get(ctx, fmt.Sprintf("%s/%s", s.baseURL, containerID), params, &result); err != nil {
			return false, err
		}

		switch result.StatusCode {
		case "FINISHED":
			return true, nil
		case "ERROR":
			return false, errors.New("video processing failed")
		default:
			return false, nil
		}
	})
	if errors.Is(err, poll.ErrDeadlineExceeded) {
		return errors.New("video processing timeout")
	}
	return err
}

func (s *instagramService) PublishPhotoPost(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) == 0 {
		return "", errors.New("media url is required")
	}

	containerID, err := s.createMediaContainer(ctx, account.AccountID, account.AccessToken, containerParams{
		mediaType: "IMAGE",
		mediaURL:  params.MediaURLs[0],
		caption:   params.Content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish photo: %w", err)
	}

	return s.publishMediaContainer(ctx, account.AccountID, account.AccessToken, containerID)
}

func (s *instagramService) PublishVideoPost(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) == 0 {
		return "", errors.New("media url is required")
	}

	containerID, err := s.createMediaContainer(ctx, account.AccountID, account.AccessToken, containerParams{
		mediaType: "VIDEO",
		mediaURL:  params.MediaURLs[0],
		caption:   params.Content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish video: %w", err)
	}

	if err := s.waitForProcessing(ctx, containerID, account.AccessToken); err != nil {
		return "", err
	}

	return s.publishMediaContainer(ctx, account.AccountID, account.AccessToken, containerID)
}

// PublishCarouselPost creates one child container per item first, then the
// parent CAROUSEL_ALBUM container referencing all children, then publishes
// the parent. Children must exist before the parent is created.
func (s *instagramService) PublishCarouselPost(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) < 2 {
		return "", errors.New("at least 2 media urls are required for carousel")
	}

	childIDs := make([]string, 0, len(params.MediaURLs))
	for _, mediaURL := range params.MediaURLs {
		mediaType := "IMAGE"
		if isVideoURL(mediaURL) {
			mediaType = "VIDEO"
		}

		childID, err := s.createMediaContainer(ctx, account.AccountID, account.AccessToken, containerParams{
			mediaType:      mediaType,
			mediaURL:       mediaURL,
			isCarouselItem: true,
		})
		if err != nil {
			return "", fmt.Errorf("failed to create carousel item: %w", err)
		}
		childIDs = append(childIDs, childID)
	}

	parentID, err := s.createMediaContainer(ctx, account.AccountID, account.AccessToken, containerParams{
		mediaType: "CAROUSEL_ALBUM",
		caption:   params.Content,
		children:  childIDs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create carousel container: %w", err)
	}

	return s.publishMediaContainer(ctx, account.AccountID, account.AccessToken, parentID)
}

// PublishStory is a single-call publish; stories have no separate publish
// phase.
func (s *instagramService) PublishStory(ctx context.Context, params PublishParams) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) == 0 {
		return "", errors.New("media url is required for story")
	}

	return s.createMediaContainer(ctx, account.AccountID, account.AccessToken, containerParams{
		mediaType: "STORIES",
		mediaURL:  params.MediaURLs[0],
	})
}

func (s *instagramService) CollectRecentPosts(ctx context.Context, accountID int64, limit int) ([]transfer.InstagramMedia, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", "id,caption,media_type,media_url,permalink,timestamp,thumbnail_url")
	params.Set("access_token", account.AccessToken)
	params.Set("limit", fmt.Sprint(limit))

	var result struct {
		Data []transfer.InstagramMedia `json:"data"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s/media", s.baseURL, account.AccountID), params, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

// CollectPostMetrics degrades to empty metrics when insights are not yet
// available for a fresh post.
func (s *instagramService) CollectPostMetrics(ctx context.Context, accountID int64, mediaID string) (*transfer.InstagramPostMetrics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "impressions,reach,engagement,saved,video_views")
	params.Set("access_token", account.AccessToken)

	var insights insightsResponse
	if err := s.get(ctx, fmt.Sprintf("%s/%s/insights", s.baseURL, mediaID), params, &insights); err != nil {
		slog.Warn("could not collect instagram post insights",
			slog.String("media_id", mediaID), slog.String("error", err.Error()))
		return &transfer.InstagramPostMetrics{}, nil
	}

	values := insights.firstValues()

	metrics := &transfer.InstagramPostMetrics{
		Impressions: values["impressions"],
		Reach:       values["reach"],
		Engagement:  values["engagement"],
		Saved:       values["saved"],
		VideoViews:  values["video_views"],
	}

	countParams := url.Values{}
	countParams.Set("fields", "like_count,comments_count")
	countParams.Set("access_token", account.AccessToken)

	var mediaData struct {
		LikeCount     int64 `json:"like_count"`
		CommentsCount int64 `json:"comments_count"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s", s.baseURL, mediaID), countParams, &mediaData); err == nil {
		metrics.Likes = mediaData.LikeCount
		metrics.Comments = mediaData.CommentsCount
	}

	return metrics, nil
}

func (s *instagramService) CollectStoryMetrics(ctx context.Context, accountID int64, mediaID string) (*transfer.InstagramStoryMetrics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "impressions,reach,exits,replies,taps_forward,taps_back")
	params.Set("access_token", account.AccessToken)

	var insights insightsResponse
	if err := s.get(ctx, fmt.Sprintf("%s/%s/insights", s.baseURL, mediaID), params, &insights); err != nil {
		slog.Warn("could not collect instagram story insights",
			slog.String("media_id", mediaID), slog.String("error", err.Error()))
		return &transfer.InstagramStoryMetrics{}, nil
	}

	values := insights.firstValues()

	return &transfer.InstagramStoryMetrics{
		Impressions: values["impressions"],
		Reach:       values["reach"],
		Exits:       values["exits"],
		Replies:     values["replies"],
		TapsForward: values["taps_forward"],
		TapsBack:    values["taps_back"],
	}, nil
}

func (s *instagramService) CollectAccountMetrics(ctx context.Context, accountID int64) (*transfer.InstagramAccountMetrics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "impressions,reach,profile_views")
	params.Set("period", "day")
	params.Set("access_token", account.AccessToken)

	var insights insightsResponse
	if err := s.get(ctx, fmt.Sprintf("%s/%s/insights", s.baseURL, account.AccountID), params, &insights); err != nil {
		return nil, err
	}

	values := insights.lastValues()

	metrics := &transfer.InstagramAccountMetrics{
		Impressions:  values["impressions"],
		Reach:        values["reach"],
		ProfileViews: values["profile_views"],
	}

	accountParams := url.Values{}
	accountParams.Set("fields", "followers_count,media_count,follows_count")
	accountParams.Set("access_token", account.AccessToken)

	var accountData struct {
		FollowersCount int64 `json:"followers_count"`
		MediaCount     int64 `json:"media_count"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s", s.baseURL, account.AccountID), accountParams, &accountData); err != nil {
		return nil, err
	}

	metrics.FollowerCount = accountData.FollowersCount
	metrics.MediaCount = accountData.MediaCount

	return metrics, nil
}

func (s *instagramService) CollectAudienceInsights(ctx context.Context, accountID int64) (map[string]json.RawMessage, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "audience_city,audience_country,audience_gender_age")
	params.Set("period", "lifetime")
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

func (s *instagramService) CollectComments(ctx context.Context, accountID int64, mediaID string) ([]transfer.InstagramComment, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", "id,text,username,timestamp,like_count")
	params.Set("access_token", account.AccessToken)

	var result struct {
		Data []transfer.InstagramComment `json:"data"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s/comments", s.baseURL, mediaID), params, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

func (s *instagramService) ReplyToComment(ctx context.Context, accountID int64, commentID, message string) (string, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	return s.postForID(ctx, fmt.Sprintf("%s/%s/replies", s.baseURL, commentID), map[string]interface{}{
		"message":      message,
		"access_token": account.AccessToken,
	})
}

func (s *instagramService) SyncAccount(ctx context.Context, accountID int64) (*SyncResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	itemsProcessed := 0
	var syncErrors []models.SyncError

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	posts, err := s.CollectRecentPosts(ctx, accountID, 50)
	if err != nil {
		s.writeSyncLog(ctx, account, runID, models.SyncStatusFailed, itemsProcessed,
			[]models.SyncError{{Error: err.Error()}}, startTime)
		return nil, err
	}
	itemsProcessed += len(posts)

	for _, post := range posts {
		isStory := post.MediaType == "STORIES"

		var metrics interface{}
		var metricsErr error
		if isStory {
			metrics, metricsErr = s.CollectStoryMetrics(ctx, accountID, post.ID)
		} else {
			metrics, metricsErr = s.CollectPostMetrics(ctx, accountID, post.ID)
		}
		if metricsErr != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: post.ID, Error: metricsErr.Error()})
			continue
		}
		if err := s.saveMetrics(ctx, account, post.ID, metrics); err != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: post.ID, Error: err.Error()})
			continue
		}

		// Stories take no direct comments.
		if isStory {
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
				Platform:          models.PlatformInstagram,
				PlatformCommentID: comment.ID,
				AuthorUsername:    comment.Username,
				Content:           comment.Text,
				LikesCount:        comment.LikeCount,
				PublishedAt:       comment.Timestamp,
			}); err != nil {
				slog.Info(err.Error())
			}
		}
		itemsProcessed += len(comments)
	}

	if accountMetrics, err := s.CollectAccountMetrics(ctx, accountID); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	} else if err := s.saveMetrics(ctx, account, "", accountMetrics); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	}

	if audience, err := s.CollectAudienceInsights(ctx, accountID); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	} else if payload, err := json.Marshal(audience); err == nil {
		if err := s.sm.Insert(ctx, &models.SocialMetric{
			OrganizationID:  account.OrganizationID,
			SocialAccountID: account.ID,
			Platform:        models.PlatformInstagram,
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

func (s *instagramService) saveMetrics(ctx context.Context, account *resolvedAccount, mediaID string, metrics interface{}) error {
	for name, value := range metricRows(metrics) {
		if err := s.sm.Insert(ctx, &models.SocialMetric{
			OrganizationID:  account.OrganizationID,
			SocialAccountID: account.ID,
			PlatformPostID:  mediaID,
			Platform:        models.PlatformInstagram,
			MetricType:      name,
			Value:           value,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *instagramService) writeSyncLog(ctx context.Context, account *resolvedAccount, runID, status string, itemsProcessed int, syncErrors []models.SyncError, startTime time.Time) {
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

func (s *instagramService) postForID(ctx context.Context, endpoint string, payload map[string]interface{}) (string, error) {
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
	if err := decodeResponse(models.PlatformInstagram, resp, &result); err != nil {
		return "", err
	}

	if result.ID == "" {
		return "", errors.New("no media id returned from Instagram")
	}

	return result.ID, nil
}

func (s *instagramService) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
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

	return decodeResponse(models.PlatformInstagram, resp, out)
}

func isVideoURL(mediaURL string) bool {
	return strings.Contains(mediaURL, ".mp4") || strings.Contains(mediaURL, ".mov")
}
