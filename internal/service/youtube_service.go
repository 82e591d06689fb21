package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	config "github.com/growlytics/socialsync/configs"
	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/transfer"
	"github.com/growlytics/socialsync/pkg/crypto"
)

const (
	youtubeUploadBase    = "https://www.googleapis.com/upload/youtube/v3"
	youtubeAnalyticsBase = "https://youtubeanalytics.googleapis.com/v2"

	defaultCategoryID    = "22"
	defaultPrivacyStatus = "public"
)

type YoutubeService interface {
	PublishVideo(ctx context.Context, params PublishParams, meta models.PostMetadata) (string, error)
	SetThumbnail(ctx context.Context, accountID int64, videoID, thumbnailURL string) error
	UpdateVideo(ctx context.Context, accountID int64, videoID, title, description string) error
	CollectRecentVideos(ctx context.Context, accountID int64, limit int64) ([]string, error)
	CollectVideoMetrics(ctx context.Context, accountID int64, videoID string) (*transfer.YoutubeVideoMetrics, error)
	CollectChannelMetrics(ctx context.Context, accountID int64) (*transfer.YoutubeChannelMetrics, error)
	CollectChannelAnalytics(ctx context.Context, accountID int64) (*transfer.YoutubeChannelAnalytics, error)
	CollectComments(ctx context.Context, accountID int64, videoID string) ([]*youtube.CommentThread, error)
	ReplyToComment(ctx context.Context, accountID int64, commentID, message string) (string, error)
	SyncAccount(ctx context.Context, accountID int64) (*SyncResult, error)
}

type youtubeService struct {
	cfg           config.Config
	sa            repository.SocialAccountRepository
	sm            repository.SocialMetricRepository
	sc            repository.SocialCommentRepository
	sl            repository.SyncLogRepository
	vault         *crypto.Vault
	client        *http.Client
	limiter       *rate.Limiter
	uploadBase    string
	analyticsBase string
	apiEndpoint   string
}

func NewYoutubeService(
	cfg config.Config,
	sa repository.SocialAccountRepository,
	sm repository.SocialMetricRepository,
	sc repository.SocialCommentRepository,
	sl repository.SyncLogRepository,
	vault *crypto.Vault) YoutubeService {
	return &youtubeService{
		cfg:           cfg,
		sa:            sa,
		sm:            sm,
		sc:            sc,
		sl:            sl,
		vault:         vault,
		client:        &http.Client{Timeout: 120 * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(5), 10),
		uploadBase:    youtubeUploadBase,
		analyticsBase: youtubeAnalyticsBase,
	}
}

func (s *youtubeService) getAccount(ctx context.Context, accountID int64) (*resolvedAccount, error) {
	return resolveAccount(ctx, s.sa, s.vault, accountID)
}

func (s *youtubeService) apiService(ctx context.Context, accessToken string) (*youtube.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(s.apiEndpoint))
	}
	return youtube.NewService(ctx, opts...)
}

// PublishVideo uses the resumable upload protocol: an initiation request
// carrying the snippet returns a session URI in the Location header, and the
// video bytes are streamed to that URI in a second request.
func (s *youtubeService) PublishVideo(ctx context.Context, params PublishParams, meta models.PostMetadata) (string, error) {
	account, err := s.getAccount(ctx, params.AccountID)
	if err != nil {
		return "", err
	}

	if len(params.MediaURLs) == 0 {
		return "", errors.New("video url is required")
	}

	title := meta.Title
	if title == "" {
		title = "Untitled Video"
	}
	categoryID := meta.CategoryID
	if categoryID == "" {
		categoryID = defaultCategoryID
	}
	privacyStatus := meta.PrivacyStatus
	if privacyStatus == "" {
		privacyStatus = defaultPrivacyStatus
	}

	status := map[string]interface{}{
		"privacyStatus":           privacyStatus,
		"selfDeclaredMadeForKids": false,
	}
	if params.ScheduledAt != nil && params.ScheduledAt.After(time.Now()) {
		// YouTube only honors publishAt on private videos.
		status["privacyStatus"] = "private"
		status["publishAt"] = params.ScheduledAt.UTC().Format(time.RFC3339)
	}

	sessionURI, err := s.initiateUpload(ctx, account.AccessToken, map[string]interface{}{
		"snippet": map[string]interface{}{
			"title":       title,
			"description": params.Content,
			"tags":        params.Hashtags,
			"categoryId":  categoryID,
		},
		"status": status,
	})
	if err != nil {
		return "", err
	}

	videoID, err := s.uploadVideoBytes(ctx, sessionURI, params.MediaURLs[0])
	if err != nil {
		return "", err
	}

	if meta.ThumbnailURL != "" {
		if err := s.SetThumbnail(ctx, params.AccountID, videoID, meta.ThumbnailURL); err != nil {
			slog.Warn("could not set video thumbnail",
				slog.String("video_id", videoID), slog.String("error", err.Error()))
		}
	}

	return videoID, nil
}

func (s *youtubeService) initiateUpload(ctx context.Context, accessToken string, metadata map[string]interface{}) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("error marshalling video metadata: %w", err)
	}

	endpoint := fmt.Sprintf("%s/videos?uploadType=resumable&part=snippet,status", s.uploadBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", &PlatformError{
			Platform:   models.PlatformYoutube,
			StatusCode: resp.StatusCode,
			Message:    graphErrorMessage(raw),
		}
	}

	sessionURI := resp.Header.Get("Location")
	if sessionURI == "" {
		return "", errors.New("no upload session URI returned from YouTube")
	}
	return sessionURI, nil
}

// uploadVideoBytes streams the video from its storage URL into the upload
// session without buffering it on disk.
func (s *youtubeService) uploadVideoBytes(ctx context.Context, sessionURI, videoURL string) (string, error) {
	srcReq, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	src, err := s.client.Do(srcReq)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer src.Body.Close()

	if src.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status downloading video: %d", src.StatusCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURI, src.Body)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.ContentLength = src.ContentLength
	req.Header.Set("Content-Type", "video/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := decodeResponse(models.PlatformYoutube, resp, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no video id returned from YouTube")
	}
	return result.ID, nil
}

func (s *youtubeService) SetThumbnail(ctx context.Context, accountID int64, videoID, thumbnailURL string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	srcReq, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbnailURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	src, err := s.client.Do(srcReq)
	if err != nil {
		return fmt.Errorf("error downloading thumbnail: %w", err)
	}
	defer src.Body.Close()

	if src.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status downloading thumbnail: %d", src.StatusCode)
	}

	endpoint := fmt.Sprintf("%s/thumbnails/set?videoId=%s&uploadType=media", s.uploadBase, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, src.Body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	return decodeResponse(models.PlatformYoutube, resp, &struct{}{})
}

func (s *youtubeService) UpdateVideo(ctx context.Context, accountID int64, videoID, title, description string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	service, err := s.apiService(ctx, account.AccessToken)
	if err != nil {
		return fmt.Errorf("error creating YouTube service: %w", err)
	}

	listResp, err := service.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("error fetching video: %w", err)
	}
	if len(listResp.Items) == 0 {
		return errors.New("video not found")
	}

	video := listResp.Items[0]
	video.Snippet.Title = title
	video.Snippet.Description = description

	_, err = service.Videos.Update([]string{"snippet"}, video).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("error updating video: %w", err)
	}
	return nil
}

func (s *youtubeService) CollectRecentVideos(ctx context.Context, accountID int64, limit int64) ([]string, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	service, err := s.apiService(ctx, account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}

	resp, err := service.Search.List([]string{"id"}).
		ChannelId(account.AccountID).
		Order("date").
		Type("video").
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("error listing videos: %w", err)
	}

	videoIDs := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			videoIDs = append(videoIDs, item.Id.VideoId)
		}
	}
	return videoIDs, nil
}

func (s *youtubeService) CollectVideoMetrics(ctx context.Context, accountID int64, videoID string) (*transfer.YoutubeVideoMetrics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := end.AddDate(0, 0, -28)

	rows, _, err := s.analyticsReport(ctx, account.AccessToken, url.Values{
		"ids":       {"channel==MINE"},
		"startDate": {start.Format("2006-01-02")},
		"endDate":   {end.Format("2006-01-02")},
		"metrics":   {"views,likes,dislikes,comments,shares,averageViewDuration,averageViewPercentage,subscribersGained,subscribersLost"},
		"filters":   {"video==" + videoID},
	})
	if err != nil {
		return nil, err
	}

	metrics := &transfer.YoutubeVideoMetrics{}
	if len(rows) > 0 && len(rows[0]) >= 9 {
		row := rows[0]
		metrics.Views = asInt64(row[0])
		metrics.Likes = asInt64(row[1])
		metrics.Dislikes = asInt64(row[2])
		metrics.Comments = asInt64(row[3])
		metrics.Shares = asInt64(row[4])
		metrics.AverageViewDuration = asFloat64(row[5])
		metrics.AverageViewPercentage = asFloat64(row[6])
		metrics.SubscribersGained = asInt64(row[7])
		metrics.SubscribersLost = asInt64(row[8])
	}
	return metrics, nil
}

func (s *youtubeService) CollectChannelMetrics(ctx context.Context, accountID int64) (*transfer.YoutubeChannelMetrics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	service, err := s.apiService(ctx, account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}

	resp, err := service.Channels.List([]string{"statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("error fetching channel statistics: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, errors.New("channel not found")
	}

	stats := resp.Items[0].Statistics
	return &transfer.YoutubeChannelMetrics{
		SubscriberCount: int64(stats.SubscriberCount),
		VideoCount:      int64(stats.VideoCount),
		ViewCount:       int64(stats.ViewCount),
	}, nil
}

// CollectChannelAnalytics aggregates three analytics reports over the last
// 28 days: daily views, traffic sources, and viewer demographics/geography.
func (s *youtubeService) CollectChannelAnalytics(ctx context.Context, accountID int64) (*transfer.YoutubeChannelAnalytics, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := end.AddDate(0, 0, -28)
	startDate := start.Format("2006-01-02")
	endDate := end.Format("2006-01-02")

	analytics := &transfer.YoutubeChannelAnalytics{}

	rows, _, err := s.analyticsReport(ctx, account.AccessToken, url.Values{
		"ids":        {"channel==MINE"},
		"startDate":  {startDate},
		"endDate":    {endDate},
		"metrics":    {"views,estimatedMinutesWatched,averageViewDuration,subscribersGained"},
		"dimensions": {"day"},
		"sort":       {"day"},
	})
	if err != nil {
		return nil, err
	}
	analytics.Analytics = rows

	rows, _, err = s.analyticsReport(ctx, account.AccessToken, url.Values{
		"ids":        {"channel==MINE"},
		"startDate":  {startDate},
		"endDate":    {endDate},
		"metrics":    {"views"},
		"dimensions": {"insightTrafficSourceType"},
		"sort":       {"-views"},
	})
	if err != nil {
		slog.Warn("could not collect traffic sources", slog.String("error", err.Error()))
	} else {
		analytics.TrafficSources = rows
	}

	rows, _, err = s.analyticsReport(ctx, account.AccessToken, url.Values{
		"ids":        {"channel==MINE"},
		"startDate":  {startDate},
		"endDate":    {endDate},
		"metrics":    {"viewerPercentage"},
		"dimensions": {"ageGroup,gender"},
	})
	if err != nil {
		slog.Warn("could not collect demographics", slog.String("error", err.Error()))
	} else {
		analytics.Demographics.Demographics = rows
	}

	rows, _, err = s.analyticsReport(ctx, account.AccessToken, url.Values{
		"ids":        {"channel==MINE"},
		"startDate":  {startDate},
		"endDate":    {endDate},
		"metrics":    {"views"},
		"dimensions": {"country"},
		"sort":       {"-views"},
		"maxResults": {"25"},
	})
	if err != nil {
		slog.Warn("could not collect geography", slog.String("error", err.Error()))
	} else {
		analytics.Demographics.Geography = rows
	}

	return analytics, nil
}

func (s *youtubeService) CollectComments(ctx context.Context, accountID int64, videoID string) ([]*youtube.CommentThread, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	service, err := s.apiService(ctx, account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}

	resp, err := service.CommentThreads.List([]string{"snippet"}).
		VideoId(videoID).
		MaxResults(100).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("error listing comments: %w", err)
	}
	return resp.Items, nil
}

func (s *youtubeService) ReplyToComment(ctx context.Context, accountID int64, commentID, message string) (string, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	service, err := s.apiService(ctx, account.AccessToken)
	if err != nil {
		return "", fmt.Errorf("error creating YouTube service: %w", err)
	}

	reply, err := service.Comments.Insert([]string{"snippet"}, &youtube.Comment{
		Snippet: &youtube.CommentSnippet{
			ParentId:     commentID,
			TextOriginal: message,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("error replying to comment: %w", err)
	}
	return reply.Id, nil
}

func (s *youtubeService) SyncAccount(ctx context.Context, accountID int64) (*SyncResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	itemsProcessed := 0
	var syncErrors []models.SyncError

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	videoIDs, err := s.CollectRecentVideos(ctx, accountID, 50)
	if err != nil {
		s.writeSyncLog(ctx, account, runID, models.SyncStatusFailed, itemsProcessed,
			[]models.SyncError{{Error: err.Error()}}, startTime)
		return nil, err
	}
	itemsProcessed += len(videoIDs)

	for _, videoID := range videoIDs {
		metrics, err := s.CollectVideoMetrics(ctx, accountID, videoID)
		if err != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: videoID, Error: err.Error()})
			continue
		}
		if err := s.saveMetrics(ctx, account, videoID, metrics); err != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: videoID, Error: err.Error()})
			continue
		}

		comments, err := s.CollectComments(ctx, accountID, videoID)
		if err != nil {
			syncErrors = append(syncErrors, models.SyncError{PostID: videoID, Error: err.Error()})
			continue
		}
		for _, thread := range comments {
			if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil {
				continue
			}
			top := thread.Snippet.TopLevelComment
			publishedAt, _ := time.Parse(time.RFC3339, top.Snippet.PublishedAt)
			if err := s.sc.Upsert(ctx, &models.SocialComment{
				OrganizationID:    account.OrganizationID,
				PlatformPostID:    videoID,
				Platform:          models.PlatformYoutube,
				PlatformCommentID: top.Id,
				AuthorName:        top.Snippet.AuthorDisplayName,
				Content:           top.Snippet.TextDisplay,
				LikesCount:        int(top.Snippet.LikeCount),
				PublishedAt:       publishedAt,
			}); err != nil {
				slog.Info(err.Error())
			}
		}
		itemsProcessed += len(comments)
	}

	if channelMetrics, err := s.CollectChannelMetrics(ctx, accountID); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	} else if err := s.saveMetrics(ctx, account, "", channelMetrics); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	}

	if analytics, err := s.CollectChannelAnalytics(ctx, accountID); err != nil {
		syncErrors = append(syncErrors, models.SyncError{Error: err.Error()})
	} else if payload, err := json.Marshal(analytics); err == nil {
		if err := s.sm.Insert(ctx, &models.SocialMetric{
			OrganizationID:  account.OrganizationID,
			SocialAccountID: account.ID,
			Platform:        models.PlatformYoutube,
			MetricType:      models.MetricTypeChannelAnalytics,
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

func (s *youtubeService) saveMetrics(ctx context.Context, account *resolvedAccount, videoID string, metrics interface{}) error {
	for name, value := range metricRows(metrics) {
		if err := s.sm.Insert(ctx, &models.SocialMetric{
			OrganizationID:  account.OrganizationID,
			SocialAccountID: account.ID,
			PlatformPostID:  videoID,
			Platform:        models.PlatformYoutube,
			MetricType:      name,
			Value:           value,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *youtubeService) writeSyncLog(ctx context.Context, account *resolvedAccount, runID, status string, itemsProcessed int, syncErrors []models.SyncError, startTime time.Time) {
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

func (s *youtubeService) analyticsReport(ctx context.Context, accessToken string, params url.Values) ([][]any, []string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/reports?%s", s.analyticsBase, params.Encode()), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP request error: %w", err)
	}

	var result struct {
		ColumnHeaders []struct {
			Name string `json:"name"`
		} `json:"columnHeaders"`
		Rows [][]any `json:"rows"`
	}
	if err := decodeResponse(models.PlatformYoutube, resp, &result); err != nil {
		return nil, nil, err
	}

	headers := make([]string, 0, len(result.ColumnHeaders))
	for _, h := range result.ColumnHeaders {
		headers = append(headers, h.Name)
	}
	return result.Rows, headers, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		parsed, _ := strconv.ParseFloat(n, 64)
		return parsed
	default:
		return 0
	}
}
