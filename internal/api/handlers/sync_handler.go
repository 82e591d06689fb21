package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	job "github.com/growlytics/socialsync/internal/jobs"
	"github.com/growlytics/socialsync/internal/queue"
	"github.com/growlytics/socialsync/internal/repository"
)

type SyncHandler struct {
	sa          repository.SocialAccountRepository
	syncer      *job.MetricsSyncWorker
	asynqClient *asynq.Client
}

func NewSyncHandler(sa repository.SocialAccountRepository, syncer *job.MetricsSyncWorker, asynqClient *asynq.Client) *SyncHandler {
	return &SyncHandler{
		sa:          sa,
		syncer:      syncer,
		asynqClient: asynqClient,
	}
}

func (h *SyncHandler) SyncAccount(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)

	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	account, err := h.sa.GetByID(c.Context(), int64(accountID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch account",
		})
	}
	if account == nil || account.OrganizationID != organizationID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "account not found",
		})
	}

	if err := queue.EnqueueSyncAccount(h.asynqClient, queue.SyncAccountPayload{AccountID: account.ID}); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to queue sync",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"account_id": account.ID,
		"status":     "queued",
	})
}

func (h *SyncHandler) SyncOrganization(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)

	if err := h.syncer.SyncOrganizationAccounts(c.Context(), organizationID); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Sync failed",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *SyncHandler) SyncStats(c *fiber.Ctx) error {
	stats, err := h.syncer.GetSyncStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sync stats",
		})
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}
