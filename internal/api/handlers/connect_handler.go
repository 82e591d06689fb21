package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	config "github.com/growlytics/socialsync/configs"
	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/service"
)

type ConnectHandler struct {
	oauth service.OAuthService
	sa    repository.SocialAccountRepository
	cfg   config.Config
}

func NewConnectHandler(oauth service.OAuthService, sa repository.SocialAccountRepository, cfg config.Config) *ConnectHandler {
	return &ConnectHandler{
		oauth: oauth,
		sa:    sa,
		cfg:   cfg,
	}
}

func (h *ConnectHandler) Connect(c *fiber.Ctx) error {
	userID := GetUserID(c)
	organizationID := GetOrganizationID(c)
	platform := c.Params("platform")

	var authURL string
	var err error
	switch platform {
	case models.PlatformFacebook, models.PlatformInstagram:
		authURL, err = h.oauth.GetFacebookAuthURL(userID, organizationID)
	case models.PlatformYoutube:
		authURL, err = h.oauth.GetYoutubeAuthURL(userID, organizationID)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported platform",
		})
	}
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to start account connection",
		})
	}

	return c.Redirect(authURL)
}

func (h *ConnectHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	platform := c.Params("platform")

	claims, err := h.oauth.ValidateState(state)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	switch platform {
	case models.PlatformFacebook, models.PlatformInstagram:
		err = h.facebookCallback(c, claims.OrganizationID, code)
	case models.PlatformYoutube:
		_, err = h.oauth.ConnectYoutubeAccount(c.Context(), claims.OrganizationID, code)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unsupported platform",
		})
	}
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	redirectURL := fmt.Sprintf("%s/dashboard/accounts", h.cfg.FrontendURL)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

// facebookCallback connects every page the user granted, and any Instagram
// business account linked to those pages. Pages without an Instagram link
// are not an error.
func (h *ConnectHandler) facebookCallback(c *fiber.Ctx, organizationID int64, code string) error {
	token, err := h.oauth.ExchangeFacebookCode(c.Context(), code)
	if err != nil {
		return err
	}

	longLived, err := h.oauth.GetLongLivedToken(c.Context(), token.AccessToken)
	if err != nil {
		return err
	}

	pages, err := h.oauth.GetFacebookPages(c.Context(), longLived.AccessToken)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return errors.New("no pages granted")
	}

	for _, page := range pages {
		if _, err := h.oauth.ConnectFacebookPage(c.Context(), organizationID, page); err != nil {
			return err
		}

		if _, err := h.oauth.ConnectInstagramAccount(c.Context(), organizationID, page); err != nil {
			var oauthErr *service.OAuthError
			if errors.As(err, &oauthErr) {
				continue
			}
			return err
		}
	}

	return nil
}

func (h *ConnectHandler) ListAccounts(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)

	accounts, err := h.sa.ListByOrganizationID(c.Context(), organizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch social accounts",
		})
	}

	// Tokens never leave the service boundary.
	for _, account := range accounts {
		account.AccessToken = ""
		account.RefreshToken = ""
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *ConnectHandler) DisconnectAccount(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	if err := h.oauth.DisconnectAccount(c.Context(), int64(accountID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to disconnect social account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
