package handlers

import (
	"strings"

	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// auditFor builds the common part of an audit entry from the request context.
func auditFor(c *fiber.Ctx, user *models.User, action, resourceType string, resourceID *uuid.UUID, details map[string]interface{}) services.AuditEntry {
	entry := services.AuditEntry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    c.IP(),
	}
	if user != nil {
		id := user.ID
		entry.UserID = &id
	}
	return entry
}

func validPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if len(phone) < 10 || len(phone) > 30 {
		return false
	}
	for _, r := range phone {
		if (r < '0' || r > '9') && r != '+' && r != ' ' {
			return false
		}
	}
	return true
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
