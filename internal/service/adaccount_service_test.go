package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/growlytics/socialsync/internal/models"
)

func newTestAdAccountService(t *testing.T, baseURL string) (*adAccountService, *fakeAccountRepo, int64) {
	t.Helper()

	vault := newTestVault(t)
	sa := newFakeAccountRepo()
	accountID := seedAccount(t, sa, vault, models.PlatformFacebook, "page1")

	svc := &adAccountService{
		sa:      sa,
		vault:   vault,
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
	}
	return svc, sa, accountID
}

func adAccountListJSON() map[string]interface{} {
	return map[string]interface{}{
		"data": []map[string]interface{}{
			{
				"id":             "act_123",
				"name":           "Main Account",
				"account_id":     "123",
				"account_status": 1,
				"currency":       "USD",
				"timezone_name":  "America/New_York",
				"business":       map[string]string{"id": "biz1", "name": "Acme"},
			},
			{
				"id":             "act_456",
				"name":           "Disabled Account",
				"account_id":     "456",
				"account_status": 2,
				"currency":       "EUR",
				"timezone_name":  "Europe/Berlin",
			},
		},
	}
}

func TestListAdAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/adaccounts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(adAccountListJSON())
	}))
	defer server.Close()

	svc, _, accountID := newTestAdAccountService(t, server.URL)

	adAccounts, err := svc.ListAdAccounts(context.Background(), accountID)
	if err != nil {
		t.Fatalf("ListAdAccounts: %v", err)
	}
	if len(adAccounts) != 2 || adAccounts[0].ID != "act_123" {
		t.Errorf("adAccounts = %+v", adAccounts)
	}
	if adAccounts[0].Business == nil || adAccounts[0].Business.Name != "Acme" {
		t.Errorf("business = %+v", adAccounts[0].Business)
	}
}

func TestSaveAdAccountIDMergesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adAccountListJSON())
	}))
	defer server.Close()

	svc, sa, accountID := newTestAdAccountService(t, server.URL)

	// Pre-existing metadata keys must survive the save.
	sa.SetMetadata(context.Background(), accountID, json.RawMessage(`{"custom":"keep-me"}`))

	if err := svc.SaveAdAccountID(context.Background(), accountID, "act_123"); err != nil {
		t.Fatalf("SaveAdAccountID: %v", err)
	}

	account, _ := sa.GetByID(context.Background(), accountID)
	var metadata map[string]json.RawMessage
	if err := json.Unmarshal(account.Metadata, &metadata); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if string(metadata["custom"]) != `"keep-me"` {
		t.Errorf("pre-existing metadata key lost: %s", account.Metadata)
	}
	if _, ok := metadata["ad_account"]; !ok {
		t.Fatalf("ad_account key missing: %s", account.Metadata)
	}

	got, err := svc.GetAdAccountID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAdAccountID: %v", err)
	}
	if got != "act_123" {
		t.Errorf("GetAdAccountID = %q", got)
	}
}

func TestSaveAdAccountIDRejectsUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(adAccountListJSON())
	}))
	defer server.Close()

	svc, _, accountID := newTestAdAccountService(t, server.URL)

	if err := svc.SaveAdAccountID(context.Background(), accountID, "act_999"); err == nil {
		t.Error("saving an inaccessible ad account should fail")
	}
}

func TestGetAdAccountIDUnconfigured(t *testing.T) {
	svc, _, accountID := newTestAdAccountService(t, "http://unused.invalid")

	got, err := svc.GetAdAccountID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAdAccountID: %v", err)
	}
	if got != "" {
		t.Errorf("GetAdAccountID = %q, want empty", got)
	}
}

func TestGetAdAccountStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/act_123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]int{"account_status": 1})
	}))
	defer server.Close()

	svc, _, accountID := newTestAdAccountService(t, server.URL)

	status, active, err := svc.GetAdAccountStatus(context.Background(), accountID, "act_123")
	if err != nil {
		t.Fatalf("GetAdAccountStatus: %v", err)
	}
	if status != 1 || !active {
		t.Errorf("status = %d, active = %v", status, active)
	}
}

func TestCheckAdAccountPermissionsDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "permission denied"},
		})
	}))
	defer server.Close()

	svc, _, accountID := newTestAdAccountService(t, server.URL)

	ok, err := svc.CheckAdAccountPermissions(context.Background(), accountID, "act_123")
	if err != nil {
		t.Fatalf("CheckAdAccountPermissions: %v", err)
	}
	if ok {
		t.Error("should report no permission on graph error")
	}
}
