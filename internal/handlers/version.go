package handlers

import (
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// Version is stamped at release time.
const Version = "1.4.0"

func GetVersion(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{"version": Version})
}
