package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/service"
)

// publishBatchSize caps how many due posts one tick picks up.
const publishBatchSize = 50

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrPostNotPublishable = errors.New("post is not in a publishable state")
)

type ScheduledPostsWorker struct {
	sp repository.SocialPostRepository
	fb service.FacebookService
	ig service.InstagramService
	yt service.YoutubeService

	running int32
}

func NewScheduledPostsWorker(
	sp repository.SocialPostRepository,
	fb service.FacebookService,
	ig service.InstagramService,
	yt service.YoutubeService) *ScheduledPostsWorker {
	return &ScheduledPostsWorker{
		sp: sp,
		fb: fb,
		ig: ig,
		yt: yt,
	}
}

// ProcessDuePosts is the cron entrypoint. A compare-and-swap guard keeps a
// slow batch from overlapping the next tick.
func (w *ScheduledPostsWorker) ProcessDuePosts() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		slog.Info("scheduled posts batch still running, skipping tick")
		return
	}
	defer atomic.StoreInt32(&w.running, 0)

	ctx := context.Background()

	posts, err := w.sp.ListDue(ctx, time.Now(), publishBatchSize)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(posts) == 0 {
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.SocialPost) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := w.publishPost(ctx, post); err != nil {
				slog.Info("publish failed",
					slog.Int64("post_id", post.ID),
					slog.String("platform", post.Platform),
					slog.String("error", err.Error()))
			}
		}(post)
	}

	wg.Wait()
}

// PublishNow publishes a single post immediately, bypassing its schedule.
// Only draft and scheduled posts are eligible; anything already publishing,
// published, or failed is rejected.
func (w *ScheduledPostsWorker) PublishNow(ctx context.Context, postID int64) error {
	post, err := w.sp.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return ErrPostNotFound
	}
	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusScheduled {
		return ErrPostNotPublishable
	}

	return w.publishPost(ctx, post)
}

// publishPost moves the post through publishing and either published or,
// on failure, back to scheduled until the retry ceiling marks it failed.
func (w *ScheduledPostsWorker) publishPost(ctx context.Context, post *models.SocialPost) error {
	if err := w.sp.SetStatus(ctx, post.ID, models.PostStatusPublishing); err != nil {
		return err
	}

	platformPostID, err := w.dispatch(ctx, post)
	if err != nil {
		retryCount := post.RetryCount + 1
		status := models.PostStatusScheduled
		if retryCount >= models.MaxPublishRetries {
			status = models.PostStatusFailed
		}
		if markErr := w.sp.MarkPublishFailure(ctx, post.ID, status, err.Error(), retryCount); markErr != nil {
			slog.Info(markErr.Error())
		}
		return err
	}

	return w.sp.MarkPublished(ctx, post.ID, platformPostID, time.Now())
}

func (w *ScheduledPostsWorker) dispatch(ctx context.Context, post *models.SocialPost) (string, error) {
	params := service.PublishParams{
		AccountID: post.SocialAccountID,
		Content:   post.Content,
		MediaURLs: post.MediaURLs,
		Hashtags:  post.Hashtags,
	}

	switch post.Platform {
	case models.PlatformFacebook:
		return w.dispatchFacebook(ctx, post, params)
	case models.PlatformInstagram:
		return w.dispatchInstagram(ctx, post, params)
	case models.PlatformYoutube:
		return w.yt.PublishVideo(ctx, params, post.ParseMetadata())
	default:
		return "", fmt.Errorf("unsupported platform: %s", post.Platform)
	}
}

func (w *ScheduledPostsWorker) dispatchFacebook(ctx context.Context, post *models.SocialPost, params service.PublishParams) (string, error) {
	if post.PostType == models.PostTypeVideo || post.PostType == models.PostTypeReel {
		return w.fb.PublishVideoPost(ctx, params)
	}

	switch len(post.MediaURLs) {
	case 0:
		return w.fb.PublishTextPost(ctx, params)
	case 1:
		return w.fb.PublishPhotoPost(ctx, params)
	default:
		return w.fb.PublishMultiPhotoPost(ctx, params)
	}
}

func (w *ScheduledPostsWorker) dispatchInstagram(ctx context.Context, post *models.SocialPost, params service.PublishParams) (string, error) {
	params.Content = buildCaption(post.Content, post.Hashtags)

	switch post.PostType {
	case models.PostTypeStory:
		return w.ig.PublishStory(ctx, params)
	case models.PostTypeCarousel:
		return w.ig.PublishCarouselPost(ctx, params)
	case models.PostTypeVideo, models.PostTypeReel:
		return w.ig.PublishVideoPost(ctx, params)
	default:
		if len(post.MediaURLs) > 1 {
			return w.ig.PublishCarouselPost(ctx, params)
		}
		return w.ig.PublishPhotoPost(ctx, params)
	}
}

// buildCaption appends hashtags on their own paragraph, normalizing each tag
// to a single leading #.
func buildCaption(content string, hashtags []string) string {
	if len(hashtags) == 0 {
		return content
	}

	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return content
	}
	if content == "" {
		return strings.Join(tags, " ")
	}
	return content + "\n\n" + strings.Join(tags, " ")
}
