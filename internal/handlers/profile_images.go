package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/garagehub/backend/internal/middleware"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/internal/storage"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const maxImageBytes = 10 << 20 // 10 MiB

type ProfileImagesHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
	Audit   *services.AuditService
}

func NewProfileImagesHandler(db *gorm.DB, store *storage.MinIOClient, audit *services.AuditService) *ProfileImagesHandler {
	return &ProfileImagesHandler{DB: db, Storage: store, Audit: audit}
}

func (h *ProfileImagesHandler) readUpload(c *fiber.Ctx, field string) (string, []byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return "", nil, errors.New("image file is required")
	}
	if fileHeader.Size > maxImageBytes {
		return "", nil, errors.New("image is too large")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, errors.New("failed reading image file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return "", nil, errors.New("failed reading image file")
	}
	if len(data) > maxImageBytes {
		return "", nil, errors.New("image is too large")
	}
	return fileHeader.Filename, data, nil
}

// UploadAvatar stores a profile picture. The object store write happens
// before the row update so a storage failure never leaves the profile
// pointing at a missing object.
func (h *ProfileImagesHandler) UploadAvatar(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	filename, data, err := h.readUpload(c, "image")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	path, err := h.Storage.StoreImage(c.Context(), "avatars", filename, data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImageType) {
			return utils.Error(c, fiber.StatusBadRequest, "only png, jpg and jpeg images are accepted")
		}
		logger.Error("avatar_store_failed", err, map[string]interface{}{"user_id": user.ID.String()})
		return utils.Error(c, fiber.StatusBadGateway, "failed storing image")
	}

	oldPath := user.AvatarPath
	if err := h.DB.Model(user).Update("avatar_path", path).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	// Best effort: the replaced object is orphaned otherwise.
	if oldPath != nil && *oldPath != "" {
		if err := h.Storage.Delete(c.Context(), *oldPath); err != nil {
			logger.Warn("avatar_cleanup_failed", map[string]interface{}{
				"user_id": user.ID.String(),
				"path":    *oldPath,
			})
		}
	}

	h.Audit.LogAsync(auditFor(c, user, "avatar_updated", models.AuditResourceUser, &user.ID, nil))

	return utils.Success(c, fiber.StatusOK, fiber.Map{"avatarPath": path})
}

// UploadShopImage adds a workshop photo to the calling mechanic's public
// gallery.
func (h *ProfileImagesHandler) UploadShopImage(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	filename, data, err := h.readUpload(c, "image")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	path, err := h.Storage.StoreImage(c.Context(), "shops/"+user.ID.String(), filename, data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImageType) {
			return utils.Error(c, fiber.StatusBadRequest, "only png, jpg and jpeg images are accepted")
		}
		logger.Error("shop_image_store_failed", err, map[string]interface{}{"user_id": user.ID.String()})
		return utils.Error(c, fiber.StatusBadGateway, "failed storing image")
	}

	img := models.ShopImage{MechanicID: user.ID, StoragePath: path}
	if err := h.DB.Create(&img).Error; err != nil {
		// The object is already in the store; try to undo rather than leak it.
		if derr := h.Storage.Delete(c.Context(), path); derr != nil {
			logger.Warn("shop_image_cleanup_failed", map[string]interface{}{
				"user_id": user.ID.String(),
				"path":    path,
			})
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving image")
	}

	h.Audit.LogAsync(auditFor(c, user, "shop_image_added", models.AuditResourceUser, &user.ID, map[string]interface{}{
		"image_id": img.ID.String(),
	}))

	return utils.Success(c, fiber.StatusCreated, img)
}

func (h *ProfileImagesHandler) DeleteShopImage(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	imageID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid image id")
	}

	var img models.ShopImage
	if err := h.DB.First(&img, "id = ? AND mechanic_id = ?", imageID, user.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "image not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching image")
	}

	if err := h.DB.Delete(&img).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting image")
	}

	if err := h.Storage.Delete(c.Context(), img.StoragePath); err != nil {
		logger.Warn("shop_image_cleanup_failed", map[string]interface{}{
			"user_id": user.ID.String(),
			"path":    img.StoragePath,
		})
		return utils.SuccessWithWarning(c, fiber.StatusOK, fiber.Map{"message": "image removed"}, "stored object could not be deleted")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "image removed"})
}

// ImageURL issues a short-lived presigned link for a stored object path.
func (h *ProfileImagesHandler) ImageURL(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return utils.Error(c, fiber.StatusBadRequest, "path is required")
	}

	url, err := h.Storage.PresignedGetURL(c.Context(), path, 15*time.Minute)
	if err != nil {
		return utils.Error(c, fiber.StatusBadGateway, "failed generating image url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"url": url})
}
