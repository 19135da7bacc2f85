package handlers

import (
	"errors"
	"strconv"

	"github.com/garagehub/backend/internal/middleware"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type TranscriptionsHandler struct {
	Transcriber *services.TranscriptionService
}

func NewTranscriptionsHandler(transcriber *services.TranscriptionService) *TranscriptionsHandler {
	return &TranscriptionsHandler{Transcriber: transcriber}
}

// Create forwards an uploaded voice note to the speech-to-text service and
// returns the transcript for the mechanic to edit before saving a visit. The
// audio is never persisted here.
func (h *TranscriptionsHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	if !h.Transcriber.IsEnabled() {
		return utils.Error(c, fiber.StatusServiceUnavailable, "transcription service is not configured")
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "audio file is required")
	}

	channels := 1
	if raw := c.FormValue("channels"); raw != "" {
		channels, err = strconv.Atoi(raw)
		if err != nil || channels < 1 || channels > 2 {
			return utils.Error(c, fiber.StatusBadRequest, "channels must be 1 or 2")
		}
	}
	encoding := c.FormValue("encoding", "linear16")

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading audio file")
	}
	defer file.Close()

	transcript, err := h.Transcriber.Transcribe(c.Context(), file, fileHeader.Filename, channels, encoding)
	if err != nil {
		if errors.Is(err, services.ErrTranscriberUnavailable) {
			return utils.Error(c, fiber.StatusBadGateway, "transcription service is unavailable")
		}
		logger.Error("transcription_failed", err, map[string]interface{}{
			"user_id":  user.ID.String(),
			"filename": fileHeader.Filename,
		})
		return utils.Error(c, fiber.StatusBadGateway, "transcription failed")
	}

	logger.InfoWithUser(user.ID.String(), "transcription_completed", map[string]interface{}{
		"filename": fileHeader.Filename,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"transcript": transcript})
}
