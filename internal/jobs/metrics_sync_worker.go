package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/service"
)

// recentSyncWindow is how far back an account's last_sync_at may be for the
// stats endpoint to count it as recently synced.
const recentSyncWindow = 2 * time.Hour

type MetricsSyncWorker struct {
	sa repository.SocialAccountRepository
	fb service.FacebookService
	ig service.InstagramService
	yt service.YoutubeService

	running int32
}

func NewMetricsSyncWorker(
	sa repository.SocialAccountRepository,
	fb service.FacebookService,
	ig service.InstagramService,
	yt service.YoutubeService) *MetricsSyncWorker {
	return &MetricsSyncWorker{
		sa: sa,
		fb: fb,
		ig: ig,
		yt: yt,
	}
}

// SyncAllAccounts is the cron entrypoint. One failing account never stops
// the rest of the batch; its error is logged and the loop moves on.
func (w *MetricsSyncWorker) SyncAllAccounts() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		slog.Info("metrics sync still running, skipping tick")
		return
	}
	defer atomic.StoreInt32(&w.running, 0)

	ctx := context.Background()

	accounts, err := w.sa.ListActive(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	w.syncAccounts(ctx, accounts)
}

func (w *MetricsSyncWorker) syncAccounts(ctx context.Context, accounts []*models.SocialAccount) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5)

	for _, account := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(account *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := w.syncAccount(ctx, account); err != nil {
				slog.Info("account sync failed",
					slog.Int64("account_id", account.ID),
					slog.String("platform", account.Platform),
					slog.String("error", err.Error()))
			}
		}(account)
	}

	wg.Wait()
}

// syncAccount runs one account's sync and stamps last_sync_at only when the
// sync itself completed; a sync that errored out leaves the stamp alone so
// the account still reads as stale.
func (w *MetricsSyncWorker) syncAccount(ctx context.Context, account *models.SocialAccount) error {
	var err error
	switch account.Platform {
	case models.PlatformFacebook:
		_, err = w.fb.SyncAccount(ctx, account.ID)
	case models.PlatformInstagram:
		_, err = w.ig.SyncAccount(ctx, account.ID)
	case models.PlatformYoutube:
		_, err = w.yt.SyncAccount(ctx, account.ID)
	default:
		return fmt.Errorf("unsupported platform: %s", account.Platform)
	}
	if err != nil {
		return err
	}

	if err := w.sa.SetLastSyncAt(ctx, account.ID, time.Now()); err != nil {
		slog.Info(err.Error())
	}
	return nil
}

// SyncAccountNow syncs a single account on demand.
func (w *MetricsSyncWorker) SyncAccountNow(ctx context.Context, accountID int64) (*service.SyncResult, error) {
	account, err := w.sa.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, service.ErrAccountNotFound
	}

	var result *service.SyncResult
	switch account.Platform {
	case models.PlatformFacebook:
		result, err = w.fb.SyncAccount(ctx, account.ID)
	case models.PlatformInstagram:
		result, err = w.ig.SyncAccount(ctx, account.ID)
	case models.PlatformYoutube:
		result, err = w.yt.SyncAccount(ctx, account.ID)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", account.Platform)
	}
	if err != nil {
		return nil, err
	}

	if err := w.sa.SetLastSyncAt(ctx, account.ID, time.Now()); err != nil {
		slog.Info(err.Error())
	}
	return result, nil
}

// SyncOrganizationAccounts syncs every active account an organization owns.
func (w *MetricsSyncWorker) SyncOrganizationAccounts(ctx context.Context, organizationID int64) error {
	accounts, err := w.sa.ListByOrganizationID(ctx, organizationID)
	if err != nil {
		return err
	}

	active := make([]*models.SocialAccount, 0, len(accounts))
	for _, account := range accounts {
		if account.IsActive {
			active = append(active, account)
		}
	}

	w.syncAccounts(ctx, active)
	return nil
}

func (w *MetricsSyncWorker) GetSyncStats(ctx context.Context) (*repository.SyncStats, error) {
	return w.sa.Stats(ctx, recentSyncWindow)
}
