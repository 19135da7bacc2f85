package utils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// SuccessWithWarning reports a committed operation whose out-of-band side
// effect failed (e.g. storage cleanup); the domain change itself stands.
func SuccessWithWarning(c *fiber.Ctx, status int, data interface{}, warning string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"warning": warning,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// Conflict reports a uniqueness conflict together with the id of the row that
// already holds the value, so callers can route the user to the existing
// resource instead of retrying the create.
func Conflict(c *fiber.Ctx, message string, existingID string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"success":    false,
		"error":      message,
		"existingID": existingID,
	})
}

func Paginated(c *fiber.Ctx, data interface{}, page, limit int, total int64) error {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

type Pagination struct {
	Page  int
	Limit int
}

func ParsePagination(c *fiber.Ctx) Pagination {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return Pagination{Page: page, Limit: limit}
}

func ApplyPagination(query *gorm.DB, p Pagination) *gorm.DB {
	return query.Offset((p.Page - 1) * p.Limit).Limit(p.Limit)
}

// NormalizeSearch lowers and trims a free-text search term; empty means no filter.
func NormalizeSearch(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
