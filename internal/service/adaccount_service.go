package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/transfer"
	"github.com/growlytics/socialsync/pkg/crypto"
)

// Ad account lookups run against a newer graph version than the publishing
// endpoints; the marketing API deprecates old versions faster.
const adAccountAPIBase = "https://graph.facebook.com/v24.0"

const adAccountStatusActive = 1

type AdAccountService interface {
	ListAdAccounts(ctx context.Context, accountID int64) ([]transfer.AdAccount, error)
	SaveAdAccountID(ctx context.Context, accountID int64, adAccountID string) error
	GetAdAccountID(ctx context.Context, accountID int64) (string, error)
	CheckAdAccountPermissions(ctx context.Context, accountID int64, adAccountID string) (bool, error)
	GetAdAccountStatus(ctx context.Context, accountID int64, adAccountID string) (int, bool, error)
}

type adAccountService struct {
	sa      repository.SocialAccountRepository
	vault   *crypto.Vault
	client  *http.Client
	baseURL string
}

func NewAdAccountService(sa repository.SocialAccountRepository, vault *crypto.Vault) AdAccountService {
	return &adAccountService{
		sa:      sa,
		vault:   vault,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: adAccountAPIBase,
	}
}

func (s *adAccountService) getAccount(ctx context.Context, accountID int64) (*resolvedAccount, error) {
	return resolveAccount(ctx, s.sa, s.vault, accountID)
}

func (s *adAccountService) ListAdAccounts(ctx context.Context, accountID int64) ([]transfer.AdAccount, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", "id,name,account_id,account_status,currency,timezone_name,business")
	params.Set("access_token", account.AccessToken)

	var result struct {
		Data []transfer.AdAccount `json:"data"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/me/adaccounts", s.baseURL), params, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

// SaveAdAccountID writes the selection into the account's metadata column,
// merging with whatever keys are already there.
func (s *adAccountService) SaveAdAccountID(ctx context.Context, accountID int64, adAccountID string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	adAccounts, err := s.ListAdAccounts(ctx, accountID)
	if err != nil {
		return err
	}

	var selected *transfer.AdAccount
	for i := range adAccounts {
		if adAccounts[i].ID == adAccountID || adAccounts[i].AccountID == adAccountID {
			selected = &adAccounts[i]
			break
		}
	}
	if selected == nil {
		return &PlatformError{
			Platform:   models.PlatformFacebook,
			StatusCode: http.StatusNotFound,
			Message:    "ad account not accessible with this token",
		}
	}

	metadata := map[string]json.RawMessage{}
	if len(account.Metadata) > 0 {
		if err := json.Unmarshal(account.Metadata, &metadata); err != nil {
			metadata = map[string]json.RawMessage{}
		}
	}

	entry := transfer.AdAccountMetadata{
		AdAccountID:   selected.ID,
		AdAccountName: selected.Name,
		Currency:      selected.Currency,
		Timezone:      selected.TimezoneName,
		ConfiguredAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if selected.Business != nil {
		entry.BusinessID = selected.Business.ID
		entry.BusinessName = selected.Business.Name
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	metadata["ad_account"] = raw

	merged, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	return s.sa.SetMetadata(ctx, account.ID, merged)
}

func (s *adAccountService) GetAdAccountID(ctx context.Context, accountID int64) (string, error) {
	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", ErrAccountNotFound
	}

	if len(account.Metadata) == 0 {
		return "", nil
	}

	var metadata struct {
		AdAccount *transfer.AdAccountMetadata `json:"ad_account"`
	}
	if err := json.Unmarshal(account.Metadata, &metadata); err != nil {
		return "", err
	}
	if metadata.AdAccount == nil {
		return "", nil
	}

	return metadata.AdAccount.AdAccountID, nil
}

// CheckAdAccountPermissions verifies the stored token can still read the ad
// account. A graph error means no, not a hard failure.
func (s *adAccountService) CheckAdAccountPermissions(ctx context.Context, accountID int64, adAccountID string) (bool, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return false, err
	}

	params := url.Values{}
	params.Set("fields", "id")
	params.Set("access_token", account.AccessToken)

	var result struct {
		ID string `json:"id"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s", s.baseURL, adAccountID), params, &result); err != nil {
		var pe *PlatformError
		if errors.As(err, &pe) {
			return false, nil
		}
		return false, err
	}

	return result.ID != "", nil
}

func (s *adAccountService) GetAdAccountStatus(ctx context.Context, accountID int64, adAccountID string) (int, bool, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return 0, false, err
	}

	params := url.Values{}
	params.Set("fields", "account_status")
	params.Set("access_token", account.AccessToken)

	var result struct {
		AccountStatus int `json:"account_status"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/%s", s.baseURL, adAccountID), params, &result); err != nil {
		return 0, false, err
	}

	return result.AccountStatus, result.AccountStatus == adAccountStatusActive, nil
}

func (s *adAccountService) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
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
