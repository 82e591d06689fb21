package job

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/service"
)

// statusChange records one repository transition for assertions on ordering.
type statusChange struct {
	status       string
	platformID   string
	errorMessage string
	retryCount   int
}

type fakePostRepo struct {
	mu      sync.Mutex
	posts   map[int64]*models.SocialPost
	changes map[int64][]statusChange
}

func newFakePostRepo(posts ...*models.SocialPost) *fakePostRepo {
	r := &fakePostRepo{
		posts:   make(map[int64]*models.SocialPost),
		changes: make(map[int64][]statusChange),
	}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.SocialPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.SocialPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.SocialPost
	for _, p := range r.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledFor.After(now) {
			copied := *p
			due = append(due, &copied)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (r *fakePostRepo) SetStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[id].Status = status
	r.changes[id] = append(r.changes[id], statusChange{status: status})
	return nil
}

func (r *fakePostRepo) MarkPublished(ctx context.Context, id int64, platformPostID string, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[id]
	p.Status = models.PostStatusPublished
	p.PlatformPostID = platformPostID
	p.PublishedAt = &publishedAt
	p.ErrorMessage = ""
	r.changes[id] = append(r.changes[id], statusChange{status: models.PostStatusPublished, platformID: platformPostID})
	return nil
}

func (r *fakePostRepo) MarkPublishFailure(ctx context.Context, id int64, status, errorMessage string, retryCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[id]
	p.Status = status
	p.ErrorMessage = errorMessage
	p.RetryCount = retryCount
	r.changes[id] = append(r.changes[id], statusChange{status: status, errorMessage: errorMessage, retryCount: retryCount})
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*models.SocialAccount
	lastSync map[int64]time.Time
}

func newFakeAccountRepo(accounts ...*models.SocialAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{
		accounts: make(map[int64]*models.SocialAccount),
		lastSync: make(map[int64]time.Time),
	}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[sa.ID] = sa
	return sa.ID, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sa, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *sa
	return &copied, nil
}

func (r *fakeAccountRepo) ListActive(ctx context.Context) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range r.accounts {
		if sa.IsActive {
			copied := *sa
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListByOrganizationID(ctx context.Context, organizationID int64) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range r.accounts {
		if sa.OrganizationID == organizationID {
			copied := *sa
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, sa := range r.accounts {
		if sa.IsActive && sa.TokenExpiresAt.Before(finalTime) {
			copied := *sa
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) SetTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	return nil
}

func (r *fakeAccountRepo) SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSync[id] = syncedAt
	return nil
}

func (r *fakeAccountRepo) SetMetadata(ctx context.Context, id int64, metadata json.RawMessage) error {
	return nil
}

func (r *fakeAccountRepo) Deactivate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sa, ok := r.accounts[id]; ok {
		sa.IsActive = false
	}
	return nil
}

func (r *fakeAccountRepo) Stats(ctx context.Context, recentWindow time.Duration) (*repository.SyncStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.SyncStats{}
	cutoff := time.Now().Add(-recentWindow)
	for id, sa := range r.accounts {
		stats.TotalAccounts++
		if !sa.IsActive {
			continue
		}
		stats.ActiveAccounts++
		if syncedAt, ok := r.lastSync[id]; !ok {
			stats.NeverSyncedAccounts++
		} else if syncedAt.After(cutoff) {
			stats.LastSyncedAccounts++
		}
	}
	return stats, nil
}

// The service fakes embed the interface so only the methods a test exercises
// need stubbing; calling anything else panics, which is exactly what a test
// wants to hear.

type fakeFacebook struct {
	service.FacebookService
	publishText  func(ctx context.Context, params service.PublishParams) (string, error)
	publishPhoto func(ctx context.Context, params service.PublishParams) (string, error)
	publishMulti func(ctx context.Context, params service.PublishParams) (string, error)
	publishVideo func(ctx context.Context, params service.PublishParams) (string, error)
	syncAccount  func(ctx context.Context, accountID int64) (*service.SyncResult, error)
}

func (f *fakeFacebook) PublishTextPost(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishText(ctx, params)
}

func (f *fakeFacebook) PublishPhotoPost(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishPhoto(ctx, params)
}

func (f *fakeFacebook) PublishMultiPhotoPost(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishMulti(ctx, params)
}

func (f *fakeFacebook) PublishVideoPost(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishVideo(ctx, params)
}

func (f *fakeFacebook) SyncAccount(ctx context.Context, accountID int64) (*service.SyncResult, error) {
	return f.syncAccount(ctx, accountID)
}

type fakeInstagram struct {
	service.InstagramService
	publishPhoto    func(ctx context.Context, params service.PublishParams) (string, error)
	publishVideo    func(ctx context.Context, params service.PublishParams) (string, error)
	publishCarousel func(ctx context.Context, params service.PublishParams) (string, error)
	publishStory    func(ctx context.Context, params service.PublishParams) (string, error)
	syncAccount     func(ctx context.Context, accountID int64) (*service.SyncResult, error)
}

func (f *fakeInstagram) PublishPhotoPost(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishPhoto(ctx, params)
}

func (f *fakeInstagram) PublishVideoPost(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishVideo(ctx, params)
}

func (f *fakeInstagram) PublishCarouselPost(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishCarousel(ctx, params)
}

func (f *fakeInstagram) PublishStory(ctx context.Context, params service.PublishParams) (string, error) {
	return f.publishStory(ctx, params)
}

func (f *fakeInstagram) SyncAccount(ctx context.Context, accountID int64) (*service.SyncResult, error) {
	return f.syncAccount(ctx, accountID)
}

type fakeYoutube struct {
	service.YoutubeService
	publishVideo func(ctx context.Context, params service.PublishParams, meta models.PostMetadata) (string, error)
	syncAccount  func(ctx context.Context, accountID int64) (*service.SyncResult, error)
}

func (f *fakeYoutube) PublishVideo(ctx context.Context, params service.PublishParams, meta models.PostMetadata) (string, error) {
	return f.publishVideo(ctx, params, meta)
}

func (f *fakeYoutube) SyncAccount(ctx context.Context, accountID int64) (*service.SyncResult, error) {
	return f.syncAccount(ctx, accountID)
}
