package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	config "github.com/growlytics/socialsync/configs"
	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/transfer"
	"github.com/growlytics/socialsync/pkg/crypto"
	"github.com/growlytics/socialsync/pkg/utils"
)

// Long-lived Facebook tokens run about 60 days; the graph does not always
// return expires_in on exchange, so this is the assumed lifetime.
const facebookLongLivedTokenSeconds = 5184000

var facebookScopes = []string{
	"pages_show_list",
	"pages_read_engagement",
	"pages_manage_posts",
	"read_insights",
	"instagram_basic",
	"instagram_content_publish",
	"instagram_manage_insights",
}

var youtubeScopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/youtube.force-ssl",
	"https://www.googleapis.com/auth/yt-analytics.readonly",
}

type OAuthService interface {
	GetFacebookAuthURL(userID string, organizationID int64) (string, error)
	GetYoutubeAuthURL(userID string, organizationID int64) (string, error)
	ValidateState(state string) (*transfer.CustomClaims, error)
	ExchangeFacebookCode(ctx context.Context, code string) (*transfer.FacebookToken, error)
	GetLongLivedToken(ctx context.Context, shortLivedToken string) (*transfer.FacebookToken, error)
	GetFacebookPages(ctx context.Context, userToken string) ([]transfer.FacebookPage, error)
	GetInstagramAccount(ctx context.Context, pageID, pageToken string) (*transfer.InstagramBusinessAccount, error)
	ConnectFacebookPage(ctx context.Context, organizationID int64, page transfer.FacebookPage) (int64, error)
	ConnectInstagramAccount(ctx context.Context, organizationID int64, page transfer.FacebookPage) (int64, error)
	ConnectYoutubeAccount(ctx context.Context, organizationID int64, code string) (int64, error)
	RefreshYoutubeToken(ctx context.Context, accountID int64) error
	RefreshFacebookToken(ctx context.Context, accountID int64) error
	DisconnectAccount(ctx context.Context, accountID int64) error
}

type oauthService struct {
	cfg       config.Config
	sa        repository.SocialAccountRepository
	vault     *crypto.Vault
	client    *http.Client
	graphBase string
	oauthBase string
}

func NewOAuthService(cfg config.Config, sa repository.SocialAccountRepository, vault *crypto.Vault) OAuthService {
	return &oauthService{
		cfg:       cfg,
		sa:        sa,
		vault:     vault,
		client:    &http.Client{Timeout: 30 * time.Second},
		graphBase: facebookAPIBase,
		oauthBase: "https://www.facebook.com/v18.0/dialog/oauth",
	}
}

// GetFacebookAuthURL builds the consent URL. The state parameter is a short
// JWT carrying the caller's identity plus a nonce, so the callback can be
// tied back to the organization without server-side session state.
func (s *oauthService) GetFacebookAuthURL(userID string, organizationID int64) (string, error) {
	state, err := s.signState(userID, organizationID)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("client_id", s.cfg.FacebookAppID)
	params.Set("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Set("scope", strings.Join(facebookScopes, ","))
	params.Set("response_type", "code")
	params.Set("state", state)

	return s.oauthBase + "?" + params.Encode(), nil
}

func (s *oauthService) GetYoutubeAuthURL(userID string, organizationID int64) (string, error) {
	state, err := s.signState(userID, organizationID)
	if err != nil {
		return "", err
	}

	conf := s.youtubeOAuthConfig()
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent")), nil
}

func (s *oauthService) signState(userID string, organizationID int64) (string, error) {
	nonce, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	return utils.GenerateStateToken(s.cfg.SecretKey, userID, organizationID, nonce, 10*time.Minute)
}

func (s *oauthService) ValidateState(state string) (*transfer.CustomClaims, error) {
	claims, err := utils.ValidateToken(s.cfg.SecretKey, state)
	if err != nil {
		return nil, &OAuthError{Platform: "oauth", Message: "invalid state parameter"}
	}
	return claims, nil
}

func (s *oauthService) ExchangeFacebookCode(ctx context.Context, code string) (*transfer.FacebookToken, error) {
	if code == "" {
		return nil, errors.New("code is empty")
	}

	params := url.Values{}
	params.Set("client_id", s.cfg.FacebookAppID)
	params.Set("client_secret", s.cfg.FacebookAppSecret)
	params.Set("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Set("code", code)

	return s.fetchFacebookToken(ctx, params)
}

// GetLongLivedToken trades a short-lived user token for the ~60 day variant.
func (s *oauthService) GetLongLivedToken(ctx context.Context, shortLivedToken string) (*transfer.FacebookToken, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", s.cfg.FacebookAppID)
	params.Set("client_secret", s.cfg.FacebookAppSecret)
	params.Set("fb_exchange_token", shortLivedToken)

	return s.fetchFacebookToken(ctx, params)
}

func (s *oauthService) fetchFacebookToken(ctx context.Context, params url.Values) (*transfer.FacebookToken, error) {
	endpoint := fmt.Sprintf("%s/oauth/access_token?%s", s.graphBase, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &OAuthError{Platform: models.PlatformFacebook, Message: graphErrorMessage(body)}
	}

	var token transfer.FacebookToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("error decoding token response: %w", err)
	}

	if token.ExpiresIn == 0 {
		token.ExpiresIn = facebookLongLivedTokenSeconds
	}
	token.ExpiresAt = GetExpiresAt(token.ExpiresIn)

	return &token, nil
}

func (s *oauthService) GetFacebookPages(ctx context.Context, userToken string) ([]transfer.FacebookPage, error) {
	params := url.Values{}
	params.Set("fields", "id,name,access_token,category,picture{url}")
	params.Set("access_token", userToken)

	endpoint := fmt.Sprintf("%s/me/accounts?%s", s.graphBase, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}

	var result struct {
		Data []transfer.FacebookPage `json:"data"`
	}
	if err := decodeResponse(models.PlatformFacebook, resp, &result); err != nil {
		return nil, err
	}

	return result.Data, nil
}

// GetInstagramAccount resolves the Instagram business account linked to a
// Facebook page. Returns nil without error when the page has none.
func (s *oauthService) GetInstagramAccount(ctx context.Context, pageID, pageToken string) (*transfer.InstagramBusinessAccount, error) {
	params := url.Values{}
	params.Set("fields", "instagram_business_account{id,username,profile_picture_url}")
	params.Set("access_token", pageToken)

	endpoint := fmt.Sprintf("%s/%s?%s", s.graphBase, pageID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}

	var result struct {
		InstagramBusinessAccount *transfer.InstagramBusinessAccount `json:"instagram_business_account"`
	}
	if err := decodeResponse(models.PlatformFacebook, resp, &result); err != nil {
		return nil, err
	}

	return result.InstagramBusinessAccount, nil
}

func (s *oauthService) ConnectFacebookPage(ctx context.Context, organizationID int64, page transfer.FacebookPage) (int64, error) {
	encryptedToken, err := s.vault.Encrypt(page.AccessToken)
	if err != nil {
		return 0, err
	}

	return s.sa.Upsert(ctx, &models.SocialAccount{
		OrganizationID:  organizationID,
		Platform:        models.PlatformFacebook,
		AccountID:       page.ID,
		AccountName:     page.Name,
		AccountUsername: page.Name,
		ProfilePicture:  page.Picture.Data.URL,
		AccessToken:     encryptedToken,
		TokenExpiresAt:  GetExpiresAt(facebookLongLivedTokenSeconds),
	})
}

// ConnectInstagramAccount stores the Instagram business account behind the
// given page. The page token authorizes Instagram publishing, so it is the
// token stored on the Instagram row.
func (s *oauthService) ConnectInstagramAccount(ctx context.Context, organizationID int64, page transfer.FacebookPage) (int64, error) {
	igAccount, err := s.GetInstagramAccount(ctx, page.ID, page.AccessToken)
	if err != nil {
		return 0, err
	}
	if igAccount == nil {
		return 0, &OAuthError{
			Platform: models.PlatformInstagram,
			Message:  "page has no linked Instagram business account",
		}
	}

	encryptedToken, err := s.vault.Encrypt(page.AccessToken)
	if err != nil {
		return 0, err
	}

	return s.sa.Upsert(ctx, &models.SocialAccount{
		OrganizationID:  organizationID,
		Platform:        models.PlatformInstagram,
		AccountID:       igAccount.ID,
		AccountName:     igAccount.Username,
		AccountUsername: igAccount.Username,
		ProfilePicture:  igAccount.ProfilePictureURL,
		AccessToken:     encryptedToken,
		TokenExpiresAt:  GetExpiresAt(facebookLongLivedTokenSeconds),
	})
}

func (s *oauthService) youtubeOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.YoutubeClientID,
		ClientSecret: s.cfg.YoutubeClientSecret,
		RedirectURL:  s.cfg.YoutubeRedirectURI,
		Scopes:       youtubeScopes,
		Endpoint:     google.Endpoint,
	}
}

func (s *oauthService) ConnectYoutubeAccount(ctx context.Context, organizationID int64, code string) (int64, error) {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return 0, err
	}

	conf := s.youtubeOAuthConfig()
	if conf.ClientID == "" || conf.ClientSecret == "" || conf.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return 0, err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return 0, &OAuthError{Platform: models.PlatformYoutube, Message: "code exchange failed"}
	}

	if token.RefreshToken == "" {
		err := errors.New("refresh token is empty")
		slog.Info(err.Error())
		return 0, err
	}

	channel, err := s.fetchOwnChannel(ctx, conf, token)
	if err != nil {
		return 0, err
	}

	encryptedAccessToken, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return 0, err
	}
	encryptedRefreshToken, err := s.vault.Encrypt(token.RefreshToken)
	if err != nil {
		return 0, err
	}

	return s.sa.Upsert(ctx, &models.SocialAccount{
		OrganizationID:  organizationID,
		Platform:        models.PlatformYoutube,
		AccountID:       channel.ID,
		AccountName:     channel.Title,
		AccountUsername: channel.Title,
		ProfilePicture:  channel.ThumbnailURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  token.Expiry,
	})
}

func (s *oauthService) fetchOwnChannel(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (*transfer.YoutubeChannel, error) {
	client := conf.Client(ctx, token)
	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}

	resp, err := service.Channels.List([]string{"snippet", "statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("error fetching channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, errors.New("no YouTube channel for this account")
	}

	item := resp.Items[0]
	channel := &transfer.YoutubeChannel{
		ID:    item.Id,
		Title: item.Snippet.Title,
	}
	if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Default != nil {
		channel.ThumbnailURL = item.Snippet.Thumbnails.Default.Url
	}
	if item.Statistics != nil {
		channel.SubscriberCount = item.Statistics.SubscriberCount
	}
	return channel, nil
}

// RefreshYoutubeToken swaps the stored refresh token for a fresh access
// token. The refresh token itself is only replaced when Google rotates it.
func (s *oauthService) RefreshYoutubeToken(ctx context.Context, accountID int64) error {
	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	refreshToken, err := s.vault.Decrypt(account.RefreshToken)
	if err != nil {
		return err
	}

	conf := s.youtubeOAuthConfig()
	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return &OAuthError{Platform: models.PlatformYoutube, Message: "token refresh failed"}
	}

	encryptedAccessToken, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}

	var encryptedRefreshToken string
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		encryptedRefreshToken, err = s.vault.Encrypt(token.RefreshToken)
		if err != nil {
			return err
		}
	}

	return s.sa.SetTokens(ctx, accountID, encryptedAccessToken, encryptedRefreshToken, token.Expiry)
}

// RefreshFacebookToken re-exchanges the stored token for a fresh long-lived
// one. Facebook has no refresh tokens; the exchange only works while the
// current token is still valid.
func (s *oauthService) RefreshFacebookToken(ctx context.Context, accountID int64) error {
	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	currentToken, err := s.vault.Decrypt(account.AccessToken)
	if err != nil {
		return err
	}

	token, err := s.GetLongLivedToken(ctx, currentToken)
	if err != nil {
		return err
	}

	encryptedToken, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}

	return s.sa.SetTokens(ctx, accountID, encryptedToken, "", token.ExpiresAt)
}

func (s *oauthService) DisconnectAccount(ctx context.Context, accountID int64) error {
	return s.sa.Deactivate(ctx, accountID)
}
