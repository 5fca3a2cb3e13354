package vision

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rtr-labs/repaircam/internal/shared"
)

const maxUploadSize = 8 * 1024 * 1024

// Handler exposes the single-shot detection endpoints for uploaded images
// and access to the most recent stored frame of a session.
type Handler struct {
	detector *Detector
	frames   *Store
	logger   *slog.Logger
}

func NewHandler(detector *Detector, frames *Store, logger *slog.Logger) *Handler {
	return &Handler{
		detector: detector,
		frames:   frames,
		logger:   logger.With("component", "vision-handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/detect")
	g.POST("/object", h.DetectObject)
	g.POST("/serial", h.ExtractSerial)
	g.POST("/full", h.DetectFull)
	g.GET("/frame/:sessionID", h.LatestFrame)
}

func (h *Handler) DetectObject(c echo.Context) error {
	image, err := readImage(c)
	if err != nil {
		return err
	}

	result, err := h.detector.DetectObject(c.Request().Context(), image)
	if err != nil {
		h.logger.Error("object detection failed", "error", err)
		return shared.BadGateway("detection_unavailable", "detection service unavailable")
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ExtractSerial(c echo.Context) error {
	image, err := readImage(c)
	if err != nil {
		return err
	}

	result, err := h.detector.ExtractSerial(c.Request().Context(), image)
	if err != nil {
		h.logger.Error("serial extraction failed", "error", err)
		return shared.BadGateway("detection_unavailable", "detection service unavailable")
	}

	return c.JSON(http.StatusOK, result)
}

// DetectFull accepts an overview shot and an optional close-up of the label
// and returns the merged detection.
func (h *Handler) DetectFull(c echo.Context) error {
	overview, err := formImage(c, "image")
	if err != nil {
		return err
	}

	label, err := formImage(c, "label")
	if err != nil && err != http.ErrMissingFile {
		return err
	}

	result, err := h.detector.Combined(c.Request().Context(), overview, label)
	if err != nil {
		h.logger.Error("combined detection failed", "error", err)
		return shared.BadGateway("detection_unavailable", "detection service unavailable")
	}

	return c.JSON(http.StatusOK, result)
}

// LatestFrame serves the newest frame stored for a session while its TTL
// lasts, so the frontend can revisit what a detection actually saw.
func (h *Handler) LatestFrame(c echo.Context) error {
	frame, err := h.frames.GetLatestFrame(c.Request().Context(), c.Param("sessionID"))
	if err != nil {
		h.logger.Error("latest frame lookup failed", "error", err)
		return shared.InternalError("frame_lookup_failed", "could not load frame")
	}
	if frame == nil {
		return shared.NotFound("no_frame", "no recent frame for session")
	}
	return c.Blob(http.StatusOK, "image/jpeg", frame.Data)
}

func readImage(c echo.Context) ([]byte, error) {
	data, err := formImage(c, "image")
	if err == http.ErrMissingFile {
		return nil, shared.BadRequest("missing_image", "missing image file")
	}
	return data, err
}

func formImage(c echo.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, err
		}
		return nil, shared.BadRequest("missing_" + field, "missing " + field + " file")
	}
	if fh.Size > maxUploadSize {
		return nil, shared.BadRequest("image_too_large", "image too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, shared.BadRequest("unreadable_" + field, "unreadable " + field + " file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		return nil, shared.BadRequest("unreadable_" + field, "unreadable " + field + " file")
	}
	return data, nil
}
