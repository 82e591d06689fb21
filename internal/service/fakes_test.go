package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/pkg/crypto"
)

const testMasterKey = "0123456789abcdef0123456789abcdef"

func newTestVault(t interface{ Fatalf(string, ...interface{}) }) *crypto.Vault {
	vault, err := crypto.NewVault(testMasterKey, "development")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return vault
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*models.SocialAccount
	nextID   int64
	lastSync map[int64]time.Time
	metadata map[int64]json.RawMessage
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts: make(map[int64]*models.SocialAccount),
		nextID:   1,
		lastSync: make(map[int64]time.Time),
		metadata: make(map[int64]json.RawMessage),
	}
}

func (r *fakeAccountRepo) add(sa *models.SocialAccount) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sa.ID == 0 {
		sa.ID = r.nextID
		r.nextID++
	}
	r.accounts[sa.ID] = sa
	return sa.ID
}

func (r *fakeAccountRepo) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	for id, existing := range r.accounts {
		if existing.OrganizationID == sa.OrganizationID &&
			existing.Platform == sa.Platform &&
			existing.AccountID == sa.AccountID {
			sa.ID = id
			sa.IsActive = true
			r.accounts[id] = sa
			r.mu.Unlock()
			return id, nil
		}
	}
	r.mu.Unlock()
	sa.IsActive = true
	return r.add(sa), nil
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
	r.mu.Lock()
	defer r.mu.Unlock()
	if sa, ok := r.accounts[id]; ok {
		if accessToken != "" {
			sa.AccessToken = accessToken
		}
		if refreshToken != "" {
			sa.RefreshToken = refreshToken
		}
		sa.TokenExpiresAt = expiresAt
	}
	return nil
}

func (r *fakeAccountRepo) SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSync[id] = syncedAt
	if sa, ok := r.accounts[id]; ok {
		sa.LastSyncAt = &syncedAt
	}
	return nil
}

func (r *fakeAccountRepo) SetMetadata(ctx context.Context, id int64, metadata json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[id] = metadata
	if sa, ok := r.accounts[id]; ok {
		sa.Metadata = metadata
	}
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
	for _, sa := range r.accounts {
		stats.TotalAccounts++
		if !sa.IsActive {
			continue
		}
		stats.ActiveAccounts++
		if sa.LastSyncAt == nil {
			stats.NeverSyncedAccounts++
		} else if sa.LastSyncAt.After(cutoff) {
			stats.LastSyncedAccounts++
		}
	}
	return stats, nil
}

type fakeMetricRepo struct {
	mu      sync.Mutex
	metrics []*models.SocialMetric
}

func (r *fakeMetricRepo) Insert(ctx context.Context, m *models.SocialMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.metrics = append(r.metrics, &copied)
	return nil
}

func (r *fakeMetricRepo) byType(metricType string) []*models.SocialMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialMetric
	for _, m := range r.metrics {
		if m.MetricType == metricType {
			out = append(out, m)
		}
	}
	return out
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments map[string]*models.SocialComment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: make(map[string]*models.SocialComment)}
}

func (r *fakeCommentRepo) Upsert(ctx context.Context, c *models.SocialComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := c.Platform + "/" + c.PlatformCommentID
	copied := *c
	r.comments[key] = &copied
	return nil
}

type fakeSyncLogRepo struct {
	mu   sync.Mutex
	logs []*models.SocialSyncLog
}

func (r *fakeSyncLogRepo) Insert(ctx context.Context, l *models.SocialSyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *l
	r.logs = append(r.logs, &copied)
	return nil
}

// seedAccount stores an account whose token is encrypted with the test
// vault, the way production rows look.
func seedAccount(t interface{ Fatalf(string, ...interface{}) }, repo *fakeAccountRepo, vault *crypto.Vault, platform, platformAccountID string) int64 {
	encrypted, err := vault.Encrypt("access-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	return repo.add(&models.SocialAccount{
		OrganizationID: 1,
		Platform:       platform,
		AccountID:      platformAccountID,
		AccountName:    "Test Account",
		AccessToken:    encrypted,
		IsActive:       true,
		TokenExpiresAt: time.Now().Add(time.Hour),
	})
}
