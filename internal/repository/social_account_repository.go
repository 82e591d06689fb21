package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/growlytics/socialsync/internal/models"
)

type SyncStats struct {
	TotalAccounts       int `json:"total_accounts"`
	ActiveAccounts      int `json:"active_accounts"`
	LastSyncedAccounts  int `json:"last_synced_accounts"`
	NeverSyncedAccounts int `json:"never_synced_accounts"`
}

type SocialAccountRepository interface {
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListActive(ctx context.Context) ([]*models.SocialAccount, error)
	ListByOrganizationID(ctx context.Context, organizationID int64) ([]*models.SocialAccount, error)
	ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	SetTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error
	SetMetadata(ctx context.Context, id int64, metadata json.RawMessage) error
	Deactivate(ctx context.Context, id int64) error
	Stats(ctx context.Context, recentWindow time.Duration) (*SyncStats, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const accountColumns = `id, organization_id, platform, account_id, account_name, account_username,
	profile_picture_url, access_token, refresh_token, token_expires_at, is_active,
	last_sync_at, metadata, created_at, updated_at`

// Upsert keeps exactly one row per (organization, platform, platform account
// id). Reconnecting an already-connected account refreshes its tokens and
// reactivates it instead of inserting a duplicate.
func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts(
			organization_id,
			platform,
			account_id,
			account_name,
			account_username,
			profile_picture_url,
			access_token,
			refresh_token,
			token_expires_at,
			is_active,
			metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)
		ON CONFLICT (organization_id, platform, account_id) DO UPDATE
		SET account_name = EXCLUDED.account_name,
			account_username = EXCLUDED.account_username,
			profile_picture_url = EXCLUDED.profile_picture_url,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active = TRUE,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	metadata := sa.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sa.OrganizationID,
		sa.Platform,
		sa.AccountID,
		sa.AccountName,
		sa.AccountUsername,
		sa.ProfilePicture,
		sa.AccessToken,
		sa.RefreshToken,
		sa.TokenExpiresAt,
		metadata,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	sa, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return sa, nil
}

func (r *socialAccountRepository) ListActive(ctx context.Context) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE is_active = TRUE`
	return r.list(ctx, query)
}

func (r *socialAccountRepository) ListByOrganizationID(ctx context.Context, organizationID int64) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE organization_id = $1`
	return r.list(ctx, query, organizationID)
}

func (r *socialAccountRepository) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM social_accounts
		WHERE is_active = TRUE
		AND ((token_expires_at BETWEEN $1 AND $2) OR token_expires_at < $1)`
	return r.list(ctx, query, initialTime, finalTime)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

func (r *socialAccountRepository) SetTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE social_accounts
		SET access_token = COALESCE(NULLIF($2, ''), access_token),
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) SetLastSyncAt(ctx context.Context, id int64, syncedAt time.Time) error {
	query := `UPDATE social_accounts SET last_sync_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, syncedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) SetMetadata(ctx context.Context, id int64, metadata json.RawMessage) error {
	query := `UPDATE social_accounts SET metadata = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, metadata)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Deactivate soft-disables the account. Rows are never deleted so the
// metrics history keeps its account reference.
func (r *socialAccountRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE social_accounts SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) Stats(ctx context.Context, recentWindow time.Duration) (*SyncStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_active AND last_sync_at >= $1),
			COUNT(*) FILTER (WHERE is_active AND last_sync_at IS NULL)
		FROM social_accounts
	`

	var stats SyncStats
	cutoff := time.Now().Add(-recentWindow)
	err := r.db.QueryRowContext(ctx, query, cutoff).Scan(
		&stats.TotalAccounts,
		&stats.ActiveAccounts,
		&stats.LastSyncedAccounts,
		&stats.NeverSyncedAccounts,
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	var lastSyncAt sql.NullTime
	var metadata []byte

	err := row.Scan(&sa.ID, &sa.OrganizationID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccountUsername, &sa.ProfilePicture, &sa.AccessToken, &sa.RefreshToken,
		&sa.TokenExpiresAt, &sa.IsActive, &lastSyncAt, &metadata, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastSyncAt.Valid {
		sa.LastSyncAt = &lastSyncAt.Time
	}
	sa.Metadata = metadata

	return &sa, nil
}
