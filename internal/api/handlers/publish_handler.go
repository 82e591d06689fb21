package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	job "github.com/growlytics/socialsync/internal/jobs"
	"github.com/growlytics/socialsync/internal/models"
	"github.com/growlytics/socialsync/internal/queue"
	"github.com/growlytics/socialsync/internal/repository"
)

type PublishHandler struct {
	sp          repository.SocialPostRepository
	asynqClient *asynq.Client
}

func NewPublishHandler(sp repository.SocialPostRepository, asynqClient *asynq.Client) *PublishHandler {
	return &PublishHandler{
		sp:          sp,
		asynqClient: asynqClient,
	}
}

// PublishNow queues an immediate publish for a draft or scheduled post. The
// eligibility check runs here too so the caller gets a 409 right away
// instead of a silently dropped task.
func (h *PublishHandler) PublishNow(c *fiber.Ctx) error {
	organizationID := GetOrganizationID(c)

	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	post, err := h.sp.GetByID(c.Context(), int64(postID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch post",
		})
	}
	if post == nil || post.OrganizationID != organizationID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": job.ErrPostNotFound.Error(),
		})
	}
	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusScheduled {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": job.ErrPostNotPublishable.Error(),
		})
	}

	if err := queue.EnqueuePublishNow(h.asynqClient, queue.PublishNowPayload{PostID: post.ID}); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to queue publish",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"post_id": post.ID,
		"status":  "queued",
	})
}
