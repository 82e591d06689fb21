package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

func GetOrganizationID(c *fiber.Ctx) int64 {
	organizationID, _ := c.Locals("organization_id").(int64)
	return organizationID
}
