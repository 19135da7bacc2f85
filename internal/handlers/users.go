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
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB     *gorm.DB
	Garage *services.GarageService
	Audit  *services.AuditService
}

func NewUsersHandler(db *gorm.DB, garage *services.GarageService, audit *services.AuditService) *UsersHandler {
	return &UsersHandler{DB: db, Garage: garage, Audit: audit}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	search := utils.NormalizeSearch(c.Query("search"))
	includeInactive := c.QueryBool("includeInactive", false)

	query := h.DB.Model(&models.User{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(username) LIKE ? OR phone_number LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := utils.ApplyPagination(query.Preload("Roles").Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

func (h *UsersHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.Preload("Roles").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type createUserRequest struct {
	Username    string   `json:"username"`
	PhoneNumber string   `json:"phoneNumber"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles"`
}

// Create is the admin path for adding accounts with arbitrary roles.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if len(req.Username) < 2 || len(req.Username) > 100 {
		return utils.Error(c, fiber.StatusBadRequest, "username must be between 2 and 100 characters")
	}
	if !validPhone(req.PhoneNumber) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid phone number")
	}
	if !validEmail(req.Email) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 6 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 6 characters")
	}
	if len(req.Roles) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "at least one role is required")
	}

	roles, err := h.resolveRoles(req.Roles)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	user := models.User{
		Username:     req.Username,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		Roles:        roles,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "phone number, email or username already registered")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	h.Audit.LogAsync(auditFor(c, admin, "user_created", models.AuditResourceUser, &user.ID, map[string]interface{}{
		"roles": req.Roles,
	}))
	logger.InfoWithUser(admin.ID.String(), "admin_created_user", map[string]interface{}{
		"target_id": user.ID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, user)
}

func (h *UsersHandler) resolveRoles(names []string) ([]models.Role, error) {
	roles := make([]models.Role, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if seen[name] {
			// Assigning a role twice is a no-op.
			continue
		}
		seen[name] = true
		if !models.IsKnownRole(name) {
			return nil, errors.New("unknown role: " + name)
		}
		var role models.Role
		if err := h.DB.Where("name = ?", name).First(&role).Error; err != nil {
			return nil, errors.New("unknown role: " + name)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

type updateUserRequest struct {
	Username    *string   `json:"username"`
	PhoneNumber *string   `json:"phoneNumber"`
	Email       *string   `json:"email"`
	Roles       *[]string `json:"roles"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.Preload("Roles").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		value := strings.TrimSpace(*req.Username)
		if len(value) < 2 || len(value) > 100 {
			return utils.Error(c, fiber.StatusBadRequest, "username must be between 2 and 100 characters")
		}
		updates["username"] = value
	}
	if req.PhoneNumber != nil {
		value := strings.TrimSpace(*req.PhoneNumber)
		if !validPhone(value) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid phone number")
		}
		updates["phone_number"] = value
	}
	if req.Email != nil {
		value := strings.ToLower(strings.TrimSpace(*req.Email))
		if !validEmail(value) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid email")
		}
		updates["email"] = value
	}

	var newRoles []models.Role
	if req.Roles != nil {
		newRoles, err = h.resolveRoles(*req.Roles)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		}
	}

	if len(updates) == 0 && req.Roles == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.Roles != nil {
			if err := tx.Model(&user).Association("Roles").Replace(newRoles); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "phone number, email or username already registered")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}

	var fresh models.User
	if err := h.DB.Preload("Roles").First(&fresh, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated user")
	}

	h.Audit.LogAsync(auditFor(c, admin, "user_updated", models.AuditResourceUser, &userID, nil))

	return utils.Success(c, fiber.StatusOK, fresh)
}

// Delete deactivates an account (soft delete). Deactivating a mechanic whose
// fleet is non-empty requires a replacement mechanic; the reassignment and the
// deactivation commit together or not at all.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}
	if admin != nil && admin.ID == userID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot deactivate your own account")
	}

	var user models.User
	if err := h.DB.Preload("Roles").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	var carCount int64
	if err := h.DB.Model(&models.Car{}).Where("mechanic_id = ?", user.ID).Count(&carCount).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking fleet")
	}

	if user.IsMechanic() && carCount > 0 {
		reassignTo := strings.TrimSpace(c.Query("reassignTo"))
		if reassignTo == "" {
			return utils.Error(c, fiber.StatusBadRequest, "reassignTo mechanic is required to deactivate a mechanic with cars")
		}
		replacementID, err := parseUUID(reassignTo)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid reassignTo id")
		}
		if err := h.Garage.ReassignAndDeactivate(c.Context(), &user, replacementID); err != nil {
			if errors.Is(err, services.ErrReassignTargetInvalid) {
				return utils.Error(c, fiber.StatusBadRequest, err.Error())
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed deactivating mechanic")
		}
		h.Audit.LogAsync(auditFor(c, admin, "user_deactivated", models.AuditResourceUser, &userID, map[string]interface{}{
			"reassigned_to": replacementID.String(),
			"car_count":     carCount,
		}))
		return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deactivated, cars reassigned"})
	}

	if err := h.DB.Model(&user).Update("is_active", false).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deactivating user")
	}

	h.Audit.LogAsync(auditFor(c, admin, "user_deactivated", models.AuditResourceUser, &userID, nil))

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deactivated"})
}

// PublicMechanicProfile exposes the public half of a mechanic's profile:
// name, expertise, biography and shop images. No contact data beyond those.
func (h *UsersHandler) PublicMechanicProfile(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.Preload("Roles").Preload("ShopImages").First(&user, "id = ? AND is_active = ?", userID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "mechanic not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching mechanic")
	}
	if !user.IsMechanic() {
		return utils.Error(c, fiber.StatusNotFound, "mechanic not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":         user.ID,
		"username":   user.Username,
		"biography":  user.Biography,
		"expertise":  user.Expertise,
		"avatarPath": user.AvatarPath,
		"shopImages": user.ShopImages,
	})
}
