package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/service"
)

type TokenRefreshJob struct {
	sa    repository.SocialAccountRepository
	oauth service.OAuthService
}

func NewTokenRefreshJob(sa repository.SocialAccountRepository, oauth service.OAuthService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sa:    sa,
		oauth: oauth,
	}
}

// RefreshTokens refreshes every active account whose token expires within
// the next 24 hours, plus any that already lapsed.
func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	now := time.Now()
	accounts, err := j.sa.ListExpiringBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			var err error
			switch acc.Platform {
			case models.PlatformYoutube:
				err = j.oauth.RefreshYoutubeToken(ctx, acc.ID)
			case models.PlatformFacebook, models.PlatformInstagram:
				err = j.oauth.RefreshFacebookToken(ctx, acc.ID)
			}
			if err != nil {
				slog.Info("unable to refresh token",
					slog.Int64("account_id", acc.ID),
					slog.String("platform", acc.Platform),
					slog.String("error", err.Error()))
			}
		}(acc)
	}

	wg.Wait()
}
