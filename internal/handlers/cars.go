package handlers

import (
	"errors"
	"strings"

	"github.com/garagehub/backend/internal/middleware"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CarsHandler struct {
	DB     *gorm.DB
	Garage *services.GarageService
	Audit  *services.AuditService
}

func NewCarsHandler(db *gorm.DB, garage *services.GarageService, audit *services.AuditService) *CarsHandler {
	return &CarsHandler{DB: db, Garage: garage, Audit: audit}
}

type createCarRequest struct {
	RegistrationNumber string `json:"registrationNumber"`
	VIN                string `json:"vin"`
	AdditionalInfo     string `json:"additionalInfo"`
	OwnerName          string `json:"ownerName"`
	OwnerPhone         string `json:"ownerPhone"`
}

// Create registers a car under the calling mechanic. Re-registering a plate
// the mechanic archived earlier revives the original record, visit history
// included; a plate that is still active comes back as a conflict carrying
// the existing car's id so the client can jump straight to logging a visit.
func (h *CarsHandler) Create(c *fiber.Ctx) error {
	mechanic := middleware.GetCurrentUser(c)

	var req createCarRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.OwnerName) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "owner name is required")
	}
	if !validPhone(strings.TrimSpace(req.OwnerPhone)) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid owner phone number")
	}

	car, restored, err := h.Garage.CreateOrRestoreCar(c.Context(), mechanic, services.CreateCarInput{
		RegistrationNumber: req.RegistrationNumber,
		VIN:                req.VIN,
		AdditionalInfo:     req.AdditionalInfo,
		OwnerName:          strings.TrimSpace(req.OwnerName),
		OwnerPhone:         strings.TrimSpace(req.OwnerPhone),
	})
	if err != nil {
		var conflict *services.CarConflictError
		var invalidChar *services.InvalidPlateCharError
		switch {
		case errors.As(err, &conflict):
			return utils.Conflict(c, "car with this registration number already exists", conflict.ExistingID.String())
		case errors.As(err, &invalidChar):
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrEmptyRegistration):
			return utils.Error(c, fiber.StatusBadRequest, "registration number is required")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating car")
		}
	}

	action := "car_created"
	if restored {
		action = "car_restored"
	}
	h.Audit.LogAsync(auditFor(c, mechanic, action, models.AuditResourceCar, &car.ID, map[string]interface{}{
		"registration_number": car.RegistrationNumber,
	}))
	logger.InfoWithUser(mechanic.ID.String(), action, map[string]interface{}{
		"car_id": car.ID.String(),
	})

	status := fiber.StatusCreated
	if restored {
		status = fiber.StatusOK
	}
	return utils.Success(c, status, fiber.Map{"car": car, "restored": restored})
}

// List is the mechanic dashboard: active cars owned by the caller, optionally
// filtered by plate fragment or owner phone.
func (h *CarsHandler) List(c *fiber.Ctx) error {
	mechanic := middleware.GetCurrentUser(c)
	p := utils.ParsePagination(c)
	search := utils.NormalizeSearch(c.Query("search"))

	cars, total, err := h.Garage.ListCarsForMechanic(c.Context(), mechanic.ID, search, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing cars")
	}

	return utils.Paginated(c, cars, p.Page, p.Limit, total)
}

// loadOwnedCar fetches a car and enforces that it belongs to the caller.
// Admins may touch any car. A foreign car reads as not found rather than
// forbidden so mechanics cannot probe each other's fleets.
func loadOwnedCar(c *fiber.Ctx, db *gorm.DB, user *models.User, carID uuid.UUID) (*models.Car, error) {
	var car models.Car
	if err := db.Preload("Owner").First(&car, "id = ?", carID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Error(c, fiber.StatusNotFound, "car not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed fetching car")
	}
	if car.MechanicID != user.ID && !user.IsAdmin() {
		logger.Warn("car_access_denied", map[string]interface{}{
			"user_id": user.ID.String(),
			"car_id":  car.ID.String(),
		})
		return nil, utils.Error(c, fiber.StatusNotFound, "car not found")
	}
	return &car, nil
}

func (h *CarsHandler) Get(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	carID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid car id")
	}

	car, ferr := loadOwnedCar(c, h.DB, user, carID)
	if car == nil {
		return ferr
	}

	var visits []models.CarVisit
	if err := h.DB.Where("car_id = ?", car.ID).Order("date DESC").Limit(20).Find(&visits).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching visits")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"car": car, "recentVisits": visits})
}

type updateCarRequest struct {
	VIN            *string `json:"vin"`
	AdditionalInfo *string `json:"additionalInfo"`
	OwnerName      *string `json:"ownerName"`
	OwnerPhone     *string `json:"ownerPhone"`
}

// Update edits the mutable fields of a car. The registration number is
// immutable after creation; a wrong plate means archive and re-create.
func (h *CarsHandler) Update(c *fiber.Ctx) error {
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
		return utils.Error(c, fiber.StatusBadRequest, "archived cars cannot be edited")
	}

	var req updateCarRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	carUpdates := map[string]interface{}{}
	if req.VIN != nil {
		carUpdates["vin"] = strings.TrimSpace(*req.VIN)
	}
	if req.AdditionalInfo != nil {
		carUpdates["additional_info"] = strings.TrimSpace(*req.AdditionalInfo)
	}

	ownerUpdates := map[string]interface{}{}
	if req.OwnerName != nil {
		value := strings.TrimSpace(*req.OwnerName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "owner name cannot be empty")
		}
		ownerUpdates["name"] = value
	}
	if req.OwnerPhone != nil {
		value := strings.TrimSpace(*req.OwnerPhone)
		if !validPhone(value) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid owner phone number")
		}
		ownerUpdates["phone_number"] = value
	}

	if len(carUpdates) == 0 && len(ownerUpdates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if len(carUpdates) > 0 {
			if err := tx.Model(car).Updates(carUpdates).Error; err != nil {
				return err
			}
		}
		if len(ownerUpdates) > 0 {
			if err := tx.Model(&models.CarOwner{}).Where("id = ?", car.OwnerID).Updates(ownerUpdates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "owner phone number already registered")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating car")
	}

	var fresh models.Car
	if err := h.DB.Preload("Owner").First(&fresh, "id = ?", car.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated car")
	}

	h.Audit.LogAsync(auditFor(c, user, "car_updated", models.AuditResourceCar, &car.ID, nil))

	return utils.Success(c, fiber.StatusOK, fresh)
}

// Archive retires a car from the mechanic's dashboard. The row and its visit
// history stay in place so a later re-registration can revive them.
func (h *CarsHandler) Archive(c *fiber.Ctx) error {
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
		return utils.Error(c, fiber.StatusBadRequest, "car is already archived")
	}

	if err := h.Garage.ArchiveCar(c.Context(), car); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed archiving car")
	}

	h.Audit.LogAsync(auditFor(c, user, "car_archived", models.AuditResourceCar, &car.ID, map[string]interface{}{
		"registration_number": car.RegistrationNumber,
	}))

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "car archived"})
}

// AdminList lets admins browse every car, including archived ones.
func (h *CarsHandler) AdminList(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	search := utils.NormalizeSearch(c.Query("search"))
	status := c.Query("status")

	query := h.DB.Model(&models.Car{})
	switch models.CarStatus(status) {
	case "":
	case models.CarStatusActive, models.CarStatusArchived:
		query = query.Where("cars.status = ?", status)
	default:
		return utils.Error(c, fiber.StatusBadRequest, "invalid status filter")
	}
	if search != "" {
		like := "%" + strings.ToUpper(search) + "%"
		query = query.Joins("JOIN car_owners ON car_owners.id = cars.owner_id").
			Where("cars.registration_number LIKE ? OR car_owners.phone_number LIKE ?", like, "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting cars")
	}

	var cars []models.Car
	if err := utils.ApplyPagination(query.Preload("Owner").Preload("Mechanic").Order("cars.created_at DESC"), p).Find(&cars).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing cars")
	}

	return utils.Paginated(c, cars, p.Page, p.Limit, total)
}

// AdminRestore brings an archived car back without touching its details,
// unlike the mechanic's re-registration path which rewrites them.
func (h *CarsHandler) AdminRestore(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	carID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid car id")
	}

	var car models.Car
	if err := h.DB.First(&car, "id = ?", carID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "car not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching car")
	}
	if !car.IsArchived() {
		return utils.Error(c, fiber.StatusBadRequest, "car is not archived")
	}

	// The (registration_number, mechanic_id) unique index spans archived rows
	// too, so no second row with this plate can exist for the mechanic.
	if err := h.Garage.RestoreCar(c.Context(), &car); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed restoring car")
	}

	h.Audit.LogAsync(auditFor(c, admin, "car_restored", models.AuditResourceCar, &car.ID, nil))

	return utils.Success(c, fiber.StatusOK, car)
}

// PublicGarage is the anonymous storefront listing: active mechanics with
// profile data, no car or owner information.
func (h *CarsHandler) PublicGarage(c *fiber.Ctx) error {
	var mechanics []models.User
	err := h.DB.
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("roles.name = ? AND users.is_active = ?", models.RoleMechanic, true).
		Order("users.username").
		Find(&mechanics).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing mechanics")
	}

	out := make([]fiber.Map, 0, len(mechanics))
	for _, m := range mechanics {
		out = append(out, fiber.Map{
			"id":         m.ID,
			"username":   m.Username,
			"expertise":  m.Expertise,
			"avatarPath": m.AvatarPath,
		})
	}

	return utils.Success(c, fiber.StatusOK, out)
}
