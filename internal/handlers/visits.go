package handlers

import (
	"strings"
	"time"

	"github.com/garagehub/backend/internal/middleware"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type VisitsHandler struct {
	DB     *gorm.DB
	Garage *services.GarageService
	Audit  *services.AuditService
}

func NewVisitsHandler(db *gorm.DB, garage *services.GarageService, audit *services.AuditService) *VisitsHandler {
	return &VisitsHandler{DB: db, Garage: garage, Audit: audit}
}

type createVisitRequest struct {
	Description string     `json:"description"`
	Date        *time.Time `json:"date"`
}

// Create logs a visit against a car the caller services. Visits are
// append-only; corrections go in a new entry.
func (h *VisitsHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	carID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid car id")
	}

	car, ferr := loadOwnedCar(c, h.DB, user, carID)
	if car == nil {
		return ferr
	}
	if car.IsArchived() {
		return utils.Error(c, fiber.StatusBadRequest, "cannot log a visit on an archived car")
	}

	var req createVisitRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return utils.Error(c, fiber.StatusBadRequest, "description is required")
	}
	if len(description) > 2000 {
		return utils.Error(c, fiber.StatusBadRequest, "description must be at most 2000 characters")
	}

	date := time.Time{}
	if req.Date != nil {
		date = *req.Date
	}

	visit, err := h.Garage.AddVisit(c.Context(), car, description, date)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed logging visit")
	}

	h.Audit.LogAsync(auditFor(c, user, "visit_logged", models.AuditResourceVisit, &visit.ID, map[string]interface{}{
		"car_id": car.ID.String(),
	}))

	return utils.Success(c, fiber.StatusCreated, visit)
}

// List returns a car's visit history, newest first, with an optional
// free-text filter over the descriptions.
func (h *VisitsHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	carID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid car id")
	}

	car, ferr := loadOwnedCar(c, h.DB, user, carID)
	if car == nil {
		return ferr
	}

	p := utils.ParsePagination(c)
	search := utils.NormalizeSearch(c.Query("search"))

	query := h.DB.Model(&models.CarVisit{}).Where("car_id = ?", car.ID)
	if search != "" {
		query = query.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting visits")
	}

	var visits []models.CarVisit
	if err := utils.ApplyPagination(query.Order("date DESC, created_at DESC"), p).Find(&visits).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing visits")
	}

	return utils.Paginated(c, visits, p.Page, p.Limit, total)
}
