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

type AuthHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewAuthHandler(db *gorm.DB, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{DB: db, Audit: audit}
}

type registerRequest struct {
	Username    string `json:"username"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// Register creates a self-service account with the frontend_user role.
// Uniqueness is checked up front for friendly messages, but the database
// constraints are what actually close the race.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
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

	if msg := h.duplicateField(req.Username, req.PhoneNumber, req.Email, nil); msg != "" {
		return utils.Error(c, fiber.StatusConflict, msg)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	var frontendRole models.Role
	if err := h.DB.Where("name = ?", models.RoleFrontendUser).First(&frontendRole).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "role seed missing")
	}

	user := models.User{
		Username:     req.Username,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		Roles:        []models.Role{frontendRole},
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race after the pre-check; report which field collided.
			if msg := h.duplicateField(req.Username, req.PhoneNumber, req.Email, nil); msg != "" {
				return utils.Error(c, fiber.StatusConflict, msg)
			}
			return utils.Error(c, fiber.StatusConflict, "account already exists")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	h.Audit.LogAsync(auditFor(c, &user, "user_registered", models.AuditResourceUser, &user.ID, nil))
	logger.Info("user_registered", map[string]interface{}{"user_id": user.ID.String()})

	return utils.Success(c, fiber.StatusCreated, user)
}

// duplicateField reports which uniqueness constraint a registration would
// violate; excludeID skips the user's own row on self-update.
func (h *AuthHandler) duplicateField(username, phone, email string, excludeID *models.User) string {
	query := func(column, value string) bool {
		if value == "" {
			return false
		}
		q := h.DB.Model(&models.User{}).Where(column+" = ?", value)
		if excludeID != nil {
			q = q.Where("id <> ?", excludeID.ID)
		}
		var count int64
		if err := q.Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	}

	switch {
	case query("phone_number", phone):
		return "phone number already registered"
	case query("email", email):
		return "email already registered"
	case query("username", username):
		return "username already taken"
	default:
		return ""
	}
}

type loginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Remember    bool   `json:"remember"`
}

// Login verifies phone+password. Every failure mode returns the same generic
// message so the endpoint cannot be used to probe which numbers exist.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "phone number and password are required")
	}

	var user models.User
	err := h.DB.Preload("Roles").Where("phone_number = ?", strings.TrimSpace(req.PhoneNumber)).First(&user).Error
	if err != nil || !user.IsActive || !utils.CheckPassword(user.PasswordHash, req.Password) {
		logger.Warn("login_failed", map[string]interface{}{"ip": c.IP()})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateToken(user.ID, user.PhoneNumber, req.Remember)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to generate token")
	}

	h.Audit.LogAsync(auditFor(c, &user, "user_login", models.AuditResourceSession, nil, map[string]interface{}{
		"remember": req.Remember,
	}))

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":         user,
		"phonePending": user.PhonePending(),
	})
}

type updateMeRequest struct {
	Username    *string `json:"username"`
	PhoneNumber *string `json:"phoneNumber"`
	Email       *string `json:"email"`
	Biography   *string `json:"biography"`
	Expertise   *string `json:"expertise"`
}

// UpdateMe is the self-service account update, including the phone-completion
// step for SSO-provisioned accounts.
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	checkUsername, checkPhone, checkEmail := "", "", ""

	if req.Username != nil {
		value := strings.TrimSpace(*req.Username)
		if len(value) < 2 || len(value) > 100 {
			return utils.Error(c, fiber.StatusBadRequest, "username must be between 2 and 100 characters")
		}
		if value != user.Username {
			checkUsername = value
		}
		updates["username"] = value
	}
	if req.PhoneNumber != nil {
		value := strings.TrimSpace(*req.PhoneNumber)
		if !validPhone(value) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid phone number")
		}
		if value != user.PhoneNumber {
			checkPhone = value
		}
		updates["phone_number"] = value
	}
	if req.Email != nil {
		value := strings.ToLower(strings.TrimSpace(*req.Email))
		if !validEmail(value) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid email")
		}
		if value != user.Email {
			checkEmail = value
		}
		updates["email"] = value
	}
	if req.Biography != nil {
		if len(*req.Biography) > 500 {
			return utils.Error(c, fiber.StatusBadRequest, "biography too long")
		}
		updates["biography"] = *req.Biography
	}
	if req.Expertise != nil {
		if len(*req.Expertise) > 200 {
			return utils.Error(c, fiber.StatusBadRequest, "expertise too long")
		}
		updates["expertise"] = *req.Expertise
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if msg := h.duplicateField(checkUsername, checkPhone, checkEmail, user); msg != "" {
		return utils.Error(c, fiber.StatusConflict, msg)
	}

	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "value already in use")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating account")
	}

	var fresh models.User
	if err := h.DB.Preload("Roles").First(&fresh, "id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated account")
	}

	h.Audit.LogAsync(auditFor(c, user, "account_updated", models.AuditResourceUser, &user.ID, nil))

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":         fresh,
		"phonePending": fresh.PhonePending(),
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.NewPassword) < 6 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 6 characters")
	}
	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}
	if err := h.DB.Model(user).Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating password")
	}

	h.Audit.LogAsync(auditFor(c, user, "password_changed", models.AuditResourceUser, &user.ID, nil))

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}
