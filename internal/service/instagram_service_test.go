package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	config "github.com/growlytics/socialsync/configs"
	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/pkg/poll"
)

func newTestInstagramService(t *testing.T, baseURL string) (*instagramService, *fakeAccountRepo, *fakeMetricRepo, *fakeCommentRepo, *fakeSyncLogRepo, int64) {
	t.Helper()

	vault := newTestVault(t)
	sa := newFakeAccountRepo()
	sm := &fakeMetricRepo{}
	sc := newFakeCommentRepo()
	sl := &fakeSyncLogRepo{}
	accountID := seedAccount(t, sa, vault, models.PlatformInstagram, "ig1")

	svc := &instagramService{
		cfg:     config.Config{},
		sa:      sa,
		sm:      sm,
		sc:      sc,
		sl:      sl,
		vault:   vault,
		client:  &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
		baseURL: baseURL,
		pollConf: poll.Config{
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      1.5,
			Jitter:          0,
			Deadline:        200 * time.Millisecond,
		},
	}
	return svc, sa, sm, sc, sl, accountID
}

func TestInstagramPublishPhotoTwoPhase(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case "/ig1/media":
			payload := decodeBody(t, r)
			if payload["image_url"] != "https://cdn.example.com/a.jpg" {
				t.Errorf("image_url = %v", payload["image_url"])
			}
			if payload["caption"] != "caption" {
				t.Errorf("caption = %v", payload["caption"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "container1"})
		case "/ig1/media_publish":
			payload := decodeBody(t, r)
			if payload["creation_id"] != "container1" {
				t.Errorf("creation_id = %v", payload["creation_id"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "media1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	svc, _, _, _, _, accountID := newTestInstagramService(t, server.URL)

	mediaID, err := svc.PublishPhotoPost(context.Background(), PublishParams{
		AccountID: accountID,
		Content:   "caption",
		MediaURLs: []string{"https://cdn.example.com/a.jpg"},
	})
	if err != nil {
		t.Fatalf("PublishPhotoPost: %v", err)
	}
	if mediaID != "media1" {
		t.Errorf("mediaID = %q", mediaID)
	}

	want := []string{"/ig1/media", "/ig1/media_publish"}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("call order = %v, want %v", calls, want)
	}
}

func TestInstagramPublishVideoPollsUntilFinished(t *testing.T) {
	var mu sync.Mutex
	statusPolls := 0
	published := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/ig1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "vcontainer"})
		case "/vcontainer":
			statusPolls++
			status := "IN_PROGRESS"
			if statusPolls >= 3 {
				status = "FINISHED"
			}
			json.NewEncoder(w).Encode(map[string]string{"status_code": status})
		case "/ig1/media_publish":
			if statusPolls < 3 {
				t.Error("media_publish called before processing finished")
			}
			published = true
			json.NewEncoder(w).Encode(map[string]string{"id": "video1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	svc, _, _, _, _, accountID := newTestInstagramService(t, server.URL)

	mediaID, err := svc.PublishVideoPost(context.Background(), PublishParams{
		AccountID: accountID,
		Content:   "video",
		MediaURLs: []string{"https://cdn.example.com/clip.mp4"},
	})
	if err != nil {
		t.Fatalf("PublishVideoPost: %v", err)
	}
	if mediaID != "video1" || !published {
		t.Errorf("mediaID = %q, published = %v", mediaID, published)
	}
}

func TestInstagramPublishVideoProcessingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "vcontainer"})
		case "/vcontainer":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "ERROR"})
		default:
			t.Errorf("unexpected path %s (publish must not happen)", r.URL.Path)
		}
	}))
	defer server.Close()

	svc, _, _, _, _, accountID := newTestInstagramService(t, server.URL)

	_, err := svc.PublishVideoPost(context.Background(), PublishParams{
		AccountID: accountID,
		MediaURLs: []string{"https://cdn.example.com/clip.mp4"},
	})
	if err == nil || !strings.Contains(err.Error(), "processing failed") {
		t.Errorf("error = %v, want processing failed", err)
	}
}

func TestInstagramPublishVideoProcessingTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "vcontainer"})
		case "/vcontainer":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "IN_PROGRESS"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	svc, _, _, _, _, accountID := newTestInstagramService(t, server.URL)

	_, err := svc.PublishVideoPost(context.Background(), PublishParams{
		AccountID: accountID,
		MediaURLs: []string{"https://cdn.example.com/clip.mp4"},
	})
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error = %v, want processing timeout", err)
	}
}

func TestInstagramPublishCarouselChildrenBeforeParent(t *testing.T) {
	var mu sync.Mutex
	var containerCalls []map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/ig1/media":
			payload := decodeBody(t, r)
			containerCalls = append(containerCalls, payload)
			json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("c%d", len(containerCalls))})
		case "/ig1/media_publish":
			payload := decodeBody(t, r)
			if payload["creation_id"] != "c3" {
				t.Errorf("published creation_id = %v, want the parent c3", payload["creation_id"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "carousel1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	svc, _, _, _, _, accountID := newTestInstagramService(t, server.URL)

	mediaID, err := svc.PublishCarouselPost(context.Background(), PublishParams{
		AccountID: accountID,
		Content:   "carousel",
		MediaURLs: []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.mp4"},
	})
	if err != nil {
		t.Fatalf("PublishCarouselPost: %v", err)
	}
	if mediaID != "carousel1" {
		t.Errorf("mediaID = %q", mediaID)
	}

	if len(containerCalls) != 3 {
		t.Fatalf("container calls = %d, want 2 children + 1 parent", len(containerCalls))
	}

	// Children come first and are flagged as carousel items.
	if containerCalls[0]["is_carousel_item"] != true || containerCalls[1]["is_carousel_item"] != true {
		t.Error("child containers must set is_carousel_item")
	}
	if containerCalls[1]["media_type"] != "VIDEO" {
		t.Errorf("second child media_type = %v, want VIDEO for .mp4", containerCalls[1]["media_type"])
	}

	parent := containerCalls[2]
	if parent["media_type"] != "CAROUSEL_ALBUM" {
		t.Errorf("parent media_type = %v", parent["media_type"])
	}
	children, ok := parent["children"].([]interface{})
	if !ok || len(children) != 2 || children[0] != "c1" || children[1] != "c2" {
		t.Errorf("parent children = %v, want [c1 c2]", parent["children"])
	}
}

func TestInstagramPublishCarouselRequiresTwoItems(t *testing.T) {
	svc, _, _, _, _, accountID := newTestInstagramService(t, "http://unused.invalid")

	_, err := svc.PublishCarouselPost(context.Background(), PublishParams{
		AccountID: accountID,
		MediaURLs: []string{"https://cdn.example.com/a.jpg"},
	})
	if err == nil {
		t.Error("carousel with one item should be rejected")
	}
}

func TestInstagramPublishStorySingleCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/ig1/media" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		payload := decodeBody(t, r)
		if payload["media_type"] != "STORIES" {
			t.Errorf("media_type = %v", payload["media_type"])
		}
		if payload["video_url"] != "https://cdn.example.com/story.mp4" {
			t.Errorf("video_url = %v", payload["video_url"])
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "story1"})
	}))
	defer server.Close()

	svc, _, _, _, _, accountID := newTestInstagramService(t, server.URL)

	mediaID, err := svc.PublishStory(context.Background(), PublishParams{
		AccountID: accountID,
		MediaURLs: []string{"https://cdn.example.com/story.mp4"},
	})
	if err != nil {
		t.Fatalf("PublishStory: %v", err)
	}
	if mediaID != "story1" || calls != 1 {
		t.Errorf("mediaID = %q, calls = %d (stories have no publish phase)", mediaID, calls)
	}
}

func TestInstagramSyncSkipsStoryComments(t *testing.T) {
	commentRequests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/ig1/media":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{
					{"id": "m1", "media_type": "IMAGE"},
					{"id": "s1", "media_type": "STORIES"},
				},
			})
		case r.URL.Path == "/m1/insights" || r.URL.Path == "/s1/insights":
			json.NewEncoder(w).Encode(insightsJSON(map[string]int64{"impressions": 5, "reach": 4}))
		case r.URL.Path == "/m1":
			json.NewEncoder(w).Encode(map[string]int64{"like_count": 7, "comments_count": 1})
		case r.URL.Path == "/m1/comments":
			commentRequests++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{
					"id":         "igc1",
					"text":       "hello",
					"username":   "bob",
					"timestamp":  time.Now().Format(time.RFC3339),
					"like_count": 1,
				}},
			})
		case strings.HasPrefix(r.URL.Path, "/s1/comments"):
			t.Error("comments requested for a story")
		case r.URL.Path == "/ig1/insights" && strings.HasPrefix(r.URL.Query().Get("metric"), "impressions"):
			json.NewEncoder(w).Encode(insightsJSON(map[string]int64{"impressions": 50, "reach": 40, "profile_views": 9}))
		case r.URL.Path == "/ig1/insights":
			json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]interface{}{}})
		case r.URL.Path == "/ig1":
			json.NewEncoder(w).Encode(map[string]int64{"followers_count": 1000, "media_count": 20})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc, _, sm, sc, sl, accountID := newTestInstagramService(t, server.URL)

	result, err := svc.SyncAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("SyncAccount: %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false, errors: %+v", result.Errors)
	}

	if commentRequests != 1 {
		t.Errorf("comment requests = %d, want 1 (only the image post)", commentRequests)
	}
	if _, ok := sc.comments["instagram/igc1"]; !ok {
		t.Error("image post comment not upserted")
	}

	// Story metrics come in under the story vocabulary.
	if rows := sm.byType("exits"); len(rows) != 1 {
		t.Errorf("story exits rows = %d, want 1", len(rows))
	}
	if rows := sm.byType("follower_count"); len(rows) != 1 || rows[0].Value != "1000" {
		t.Errorf("follower_count rows = %+v", rows)
	}

	if len(sl.logs) != 1 || sl.logs[0].Status != models.SyncStatusSuccess {
		t.Errorf("sync log = %+v", sl.logs)
	}
}

func TestInstagramReplyToComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/igc1/replies" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		payload := decodeBody(t, r)
		if payload["message"] != "thanks!" {
			t.Errorf("message = %v", payload["message"])
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "reply1"})
	}))
	defer server.Close()

	svc, _, _, _, _, accountID := newTestInstagramService(t, server.URL)

	replyID, err := svc.ReplyToComment(context.Background(), accountID, "igc1", "thanks!")
	if err != nil {
		t.Fatalf("ReplyToComment: %v", err)
	}
	if replyID != "reply1" {
		t.Errorf("replyID = %q", replyID)
	}
}
