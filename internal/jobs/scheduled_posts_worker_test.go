package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/service"
)

func schedulablePost(id int64, platform, postType string, mediaURLs []string) *models.SocialPost {
	return &models.SocialPost{
		ID:              id,
		OrganizationID:  1,
		SocialAccountID: 10,
		Platform:        platform,
		PostType:        postType,
		Content:         "hello world",
		MediaURLs:       mediaURLs,
		ScheduledFor:    time.Now().Add(-time.Minute),
		Status:          models.PostStatusScheduled,
	}
}

func TestPublishNowMarksPublished(t *testing.T) {
	posts := newFakePostRepo(schedulablePost(1, models.PlatformFacebook, models.PostTypePost, nil))

	fb := &fakeFacebook{
		publishText: func(ctx context.Context, params service.PublishParams) (string, error) {
			if params.AccountID != 10 {
				t.Errorf("account id = %d, want 10", params.AccountID)
			}
			return "fb_post_1", nil
		},
	}

	w := NewScheduledPostsWorker(posts, fb, &fakeInstagram{}, &fakeYoutube{})

	if err := w.PublishNow(context.Background(), 1); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	changes := posts.changes[1]
	if len(changes) != 2 {
		t.Fatalf("status changes = %d, want 2", len(changes))
	}
	if changes[0].status != models.PostStatusPublishing {
		t.Errorf("first transition = %q, want publishing", changes[0].status)
	}
	if changes[1].status != models.PostStatusPublished || changes[1].platformID != "fb_post_1" {
		t.Errorf("final transition = %+v, want published with fb_post_1", changes[1])
	}
}

func TestPublishNowRejectsWrongStatus(t *testing.T) {
	for _, status := range []string{models.PostStatusPublishing, models.PostStatusPublished, models.PostStatusFailed} {
		post := schedulablePost(1, models.PlatformFacebook, models.PostTypePost, nil)
		post.Status = status
		w := NewScheduledPostsWorker(newFakePostRepo(post), &fakeFacebook{}, &fakeInstagram{}, &fakeYoutube{})

		if err := w.PublishNow(context.Background(), 1); !errors.Is(err, ErrPostNotPublishable) {
			t.Errorf("status %q: err = %v, want ErrPostNotPublishable", status, err)
		}
	}
}

func TestPublishNowMissingPost(t *testing.T) {
	w := NewScheduledPostsWorker(newFakePostRepo(), &fakeFacebook{}, &fakeInstagram{}, &fakeYoutube{})

	if err := w.PublishNow(context.Background(), 99); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("err = %v, want ErrPostNotFound", err)
	}
}

func TestPublishFailureRollsBackToScheduled(t *testing.T) {
	posts := newFakePostRepo(schedulablePost(1, models.PlatformFacebook, models.PostTypePost, nil))

	fb := &fakeFacebook{
		publishText: func(ctx context.Context, params service.PublishParams) (string, error) {
			return "", errors.New("graph call failed")
		},
	}

	w := NewScheduledPostsWorker(posts, fb, &fakeInstagram{}, &fakeYoutube{})

	if err := w.PublishNow(context.Background(), 1); err == nil {
		t.Fatal("expected publish error")
	}

	changes := posts.changes[1]
	last := changes[len(changes)-1]
	if last.status != models.PostStatusScheduled {
		t.Errorf("status = %q, want scheduled for retry", last.status)
	}
	if last.retryCount != 1 {
		t.Errorf("retry count = %d, want 1", last.retryCount)
	}
	if last.errorMessage != "graph call failed" {
		t.Errorf("error message = %q", last.errorMessage)
	}
}

func TestPublishFailureAtRetryCeilingMarksFailed(t *testing.T) {
	post := schedulablePost(1, models.PlatformFacebook, models.PostTypePost, nil)
	post.RetryCount = models.MaxPublishRetries - 1
	posts := newFakePostRepo(post)

	fb := &fakeFacebook{
		publishText: func(ctx context.Context, params service.PublishParams) (string, error) {
			return "", errors.New("still broken")
		},
	}

	w := NewScheduledPostsWorker(posts, fb, &fakeInstagram{}, &fakeYoutube{})

	if err := w.PublishNow(context.Background(), 1); err == nil {
		t.Fatal("expected publish error")
	}

	changes := posts.changes[1]
	last := changes[len(changes)-1]
	if last.status != models.PostStatusFailed {
		t.Errorf("status = %q, want failed", last.status)
	}
	if last.retryCount != models.MaxPublishRetries {
		t.Errorf("retry count = %d, want %d", last.retryCount, models.MaxPublishRetries)
	}
}

func TestDispatchFacebookVariants(t *testing.T) {
	var called string
	record := func(name string) func(context.Context, service.PublishParams) (string, error) {
		return func(ctx context.Context, params service.PublishParams) (string, error) {
			called = name
			return "id", nil
		}
	}

	fb := &fakeFacebook{
		publishText:  record("text"),
		publishPhoto: record("photo"),
		publishMulti: record("multi"),
		publishVideo: record("video"),
	}
	w := NewScheduledPostsWorker(newFakePostRepo(), fb, &fakeInstagram{}, &fakeYoutube{})

	cases := []struct {
		postType  string
		mediaURLs []string
		want      string
	}{
		{models.PostTypePost, nil, "text"},
		{models.PostTypePost, []string{"https://cdn/a.jpg"}, "photo"},
		{models.PostTypePost, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, "multi"},
		{models.PostTypeVideo, []string{"https://cdn/a.mp4"}, "video"},
		{models.PostTypeReel, []string{"https://cdn/a.mp4"}, "video"},
	}

	for _, tc := range cases {
		called = ""
		post := schedulablePost(1, models.PlatformFacebook, tc.postType, tc.mediaURLs)
		if _, err := w.dispatch(context.Background(), post); err != nil {
			t.Fatalf("%s/%d media: %v", tc.postType, len(tc.mediaURLs), err)
		}
		if called != tc.want {
			t.Errorf("%s with %d media dispatched %q, want %q", tc.postType, len(tc.mediaURLs), called, tc.want)
		}
	}
}

func TestDispatchInstagramVariants(t *testing.T) {
	var called string
	var gotCaption string
	record := func(name string) func(context.Context, service.PublishParams) (string, error) {
		return func(ctx context.Context, params service.PublishParams) (string, error) {
			called = name
			gotCaption = params.Content
			return "id", nil
		}
	}

	ig := &fakeInstagram{
		publishPhoto:    record("photo"),
		publishVideo:    record("video"),
		publishCarousel: record("carousel"),
		publishStory:    record("story"),
	}
	w := NewScheduledPostsWorker(newFakePostRepo(), &fakeFacebook{}, ig, &fakeYoutube{})

	cases := []struct {
		postType  string
		mediaURLs []string
		want      string
	}{
		{models.PostTypeStory, []string{"https://cdn/a.jpg"}, "story"},
		{models.PostTypeCarousel, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, "carousel"},
		{models.PostTypeVideo, []string{"https://cdn/a.mp4"}, "video"},
		{models.PostTypeReel, []string{"https://cdn/a.mp4"}, "video"},
		{models.PostTypePost, []string{"https://cdn/a.jpg"}, "photo"},
		{models.PostTypePost, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, "carousel"},
	}

	for _, tc := range cases {
		called = ""
		post := schedulablePost(1, models.PlatformInstagram, tc.postType, tc.mediaURLs)
		post.Hashtags = []string{"travel", "#sunset"}
		if _, err := w.dispatch(context.Background(), post); err != nil {
			t.Fatalf("%s/%d media: %v", tc.postType, len(tc.mediaURLs), err)
		}
		if called != tc.want {
			t.Errorf("%s with %d media dispatched %q, want %q", tc.postType, len(tc.mediaURLs), called, tc.want)
		}
		if gotCaption != "hello world\n\n#travel #sunset" {
			t.Errorf("caption = %q", gotCaption)
		}
	}
}

func TestDispatchUnsupportedPlatform(t *testing.T) {
	w := NewScheduledPostsWorker(newFakePostRepo(), &fakeFacebook{}, &fakeInstagram{}, &fakeYoutube{})

	post := schedulablePost(1, "tiktok", models.PostTypePost, nil)
	if _, err := w.dispatch(context.Background(), post); err == nil {
		t.Fatal("expected unsupported platform error")
	}
}

func TestProcessDuePostsPublishesBatch(t *testing.T) {
	future := schedulablePost(3, models.PlatformFacebook, models.PostTypePost, nil)
	future.ScheduledFor = time.Now().Add(time.Hour)

	posts := newFakePostRepo(
		schedulablePost(1, models.PlatformFacebook, models.PostTypePost, nil),
		schedulablePost(2, models.PlatformFacebook, models.PostTypePost, nil),
		future,
	)

	fb := &fakeFacebook{
		publishText: func(ctx context.Context, params service.PublishParams) (string, error) {
			return "fb_id", nil
		},
	}

	w := NewScheduledPostsWorker(posts, fb, &fakeInstagram{}, &fakeYoutube{})
	w.ProcessDuePosts()

	for _, id := range []int64{1, 2} {
		if posts.posts[id].Status != models.PostStatusPublished {
			t.Errorf("post %d status = %q, want published", id, posts.posts[id].Status)
		}
	}
	if posts.posts[3].Status != models.PostStatusScheduled {
		t.Errorf("future post status = %q, want scheduled", posts.posts[3].Status)
	}
}

func TestBuildCaption(t *testing.T) {
	cases := []struct {
		content  string
		hashtags []string
		want     string
	}{
		{"hello", nil, "hello"},
		{"hello", []string{"one", "#two"}, "hello\n\n#one #two"},
		{"", []string{"solo"}, "#solo"},
		{"hello", []string{"  ", ""}, "hello"},
		{"hello", []string{" spaced "}, "hello\n\n#spaced"},
	}

	for _, tc := range cases {
		if got := buildCaption(tc.content, tc.hashtags); got != tc.want {
			t.Errorf("buildCaption(%q, %v) = %q, want %q", tc.content, tc.hashtags, got, tc.want)
		}
	}
}
