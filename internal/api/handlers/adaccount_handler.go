package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/growlytics/socialsync/internal/service"
)

type AdAccountHandler struct {
	ads service.AdAccountService
}

func NewAdAccountHandler(ads service.AdAccountService) *AdAccountHandler {
	return &AdAccountHandler{ads: ads}
}

func (h *AdAccountHandler) ListAdAccounts(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	adAccounts, err := h.ads.ListAdAccounts(c.Context(), int64(accountID))
	if err != nil {
		return adAccountError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(adAccounts)
}

func (h *AdAccountHandler) SaveAdAccount(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	var body struct {
		AdAccountID string `json:"ad_account_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.AdAccountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ad_account_id is required",
		})
	}

	if err := h.ads.SaveAdAccountID(c.Context(), int64(accountID), body.AdAccountID); err != nil {
		return adAccountError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *AdAccountHandler) GetAdAccountStatus(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	adAccountID, err := h.ads.GetAdAccountID(c.Context(), int64(accountID))
	if err != nil {
		return adAccountError(c, err)
	}
	if adAccountID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no ad account configured",
		})
	}

	status, active, err := h.ads.GetAdAccountStatus(c.Context(), int64(accountID), adAccountID)
	if err != nil {
		return adAccountError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ad_account_id": adAccountID,
		"status":        status,
		"active":        active,
	})
}

func adAccountError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrAccountNotFound) || errors.Is(err, service.ErrAccountInactive) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var platformErr *service.PlatformError
	if errors.As(err, &platformErr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": platformErr.Message,
		})
	}

	slog.Info(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "something went wrong",
	})
}
