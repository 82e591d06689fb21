package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/pkg/crypto"
)

// SyncResult is what workers consume after an account sync. Errors holds the
// per-item failures that did not abort the pass.
type SyncResult struct {
	Success        bool               `json:"success"`
	ItemsProcessed int                `json:"items_processed"`
	Errors         []models.SyncError `json:"errors"`
}

// PublishParams is the generic publish input each adapter narrows to its
// platform's call shape.
type PublishParams struct {
	AccountID   int64
	Content     string
	MediaURLs   []string
	Hashtags    []string
	ScheduledAt *time.Time
}

// resolvedAccount is an account row with its token decrypted, ready for
// outbound calls.
type resolvedAccount struct {
	ID             int64
	OrganizationID int64
	AccountID      string
	AccessToken    string
	RefreshToken   string
	Metadata       json.RawMessage
}

/// resolveAccount is the single place an adapter loads an account: it verifies
// the row exists, verifies it is active, and decrypts the stored token.
func resolveAccount(ctx context.Context, sa repository.SocialAccountRepository, vault *crypto.Vault, accountID int64) (*resolvedAccount, error) {
	account, err := sa.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	accessToken, err := vault.Decrypt(account.AccessToken)
	if err != nil {
		return nil, err
	}

	resolved := &resolvedAccount{
		ID:             account.ID,
		OrganizationID: account.OrganizationID,
		AccountID:      account.AccountID,
		AccessToken:    accessToken,
		Metadata:       account.Metadata,
	}

	if account.RefreshToken != "" {
		refreshToken, err := vault.Decrypt(account.RefreshToken)
		if err != nil {
			return nil, err
		}
		resolved.RefreshToken = refreshToken
	}

	return resolved, nil
}

// metricRows flattens a typed per-platform metrics struct into generic
// (name, value) pairs using the `metric` struct tags. The typed structs stay
// inside the adapters; only this narrowed form reaches the store.
func metricRows(metrics interface{}) map[string]string {
	rows := make(map[string]string)

	v := reflect.ValueOf(metrics)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return rows
		}
		v = v.Elem()
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("metric")
		if name == "" {
			continue
		}

		field := v.Field(i)
		switch field.Kind() {
		case reflect.Int, reflect.Int64:
			rows[name] = strconv.FormatInt(field.Int(), 10)
		case reflect.Float64:
			rows[name] = strconv.FormatFloat(field.Float(), 'f', -1, 64)
		case reflect.String:
			rows[name] = field.String()
		}
	}

	return rows
}

// decodeResponse reads and unmarshals a JSON body, returning a PlatformError
// with the platform's message on non-2xx statuses.
func decodeResponse(platform string, resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PlatformError{
			Platform:   platform,
			StatusCode: resp.StatusCode,
			Message:    graphErrorMessage(body),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}

	return nil
}

func graphErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message          string `json:"message"`
			ErrorDescription string `json:"error_description"`
		} `json:"error"`
		ErrorDescription string `json:"error_description"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Error.ErrorDescription != "" {
			return envelope.Error.ErrorDescription
		}
		if envelope.ErrorDescription != "" {
			return envelope.ErrorDescription
		}
	}

	return string(body)
}

func GetExpiresAt(expiresIn int64) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}
