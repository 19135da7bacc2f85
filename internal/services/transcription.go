package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/garagehub/backend/internal/config"
)

// ErrTranscriberUnavailable wraps any transport or upstream failure of the
// speech-to-text collaborator. The caller surfaces it before touching domain
// state, so a failed transcription never corrupts a committed visit.
var ErrTranscriberUnavailable = errors.New("transcription service unavailable")

type TranscriptionService struct {
	Cfg        config.TranscriberConfig
	HTTPClient *http.Client
}

func NewTranscriptionService(cfg config.TranscriberConfig) *TranscriptionService {
	return &TranscriptionService{
		Cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (t *TranscriptionService) IsEnabled() bool {
	return strings.TrimSpace(t.Cfg.URL) != ""
}

// Transcribe sends the audio to the external service as a multipart form with
// channel count and encoding, and returns the transcript text.
func (t *TranscriptionService) Transcribe(ctx context.Context, audio io.Reader, filename string, channels int, encoding string) (string, error) {
	if !t.IsEnabled() {
		return "", errors.New("transcription is not configured")
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		defer writer.Close()

		if err := writer.WriteField("channels", strconv.Itoa(channels)); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if err := writer.WriteField("encoding", encoding); err != nil {
			_ = pw.CloseWithError(err)
			return
		}

		part, partErr := writer.CreateFormFile("audio", filename)
		if partErr != nil {
			_ = pw.CloseWithError(partErr)
			return
		}
		if _, copyErr := io.Copy(part, audio); copyErr != nil {
			_ = pw.CloseWithError(copyErr)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.Cfg.URL, "/")+"/transcribe", pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriberUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("%w: status %d: %s", ErrTranscriberUnavailable, resp.StatusCode, string(body))
	}

	var result struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriberUnavailable, err)
	}
	return result.Transcript, nil
}
