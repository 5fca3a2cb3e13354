package repair

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rtr-labs/repaircam/internal/dto"
	"github.com/rtr-labs/repaircam/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("component", "repair-handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/repair/search", h.Search)
	e.POST("/api/repair/parts", h.Parts)
	e.POST("/api/repair/transcript", h.Transcript)
}

func (h *Handler) Search(c echo.Context) error {
	var req dto.RepairSearchRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.Object == "" {
		return shared.BadRequest("missing_object", "object must not be empty")
	}

	resources := h.service.Search(c.Request().Context(), Item{
		Object:    req.Object,
		Brand:     req.Brand,
		Model:     req.Model,
		Condition: req.Condition,
		Issues:    req.Issues,
	})
	return c.JSON(http.StatusOK, resources)
}

func (h *Handler) Parts(c echo.Context) error {
	var req dto.RepairSearchRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.Object == "" {
		return shared.BadRequest("missing_object", "object must not be empty")
	}

	results, err := h.service.SearchParts(c.Request().Context(), Item{
		Object: req.Object,
		Brand:  req.Brand,
		Model:  req.Model,
		Issues: req.Issues,
	})
	if err != nil {
		h.logger.Error("parts search failed", "error", err)
		return shared.BadGateway("search_failed", "parts search unavailable")
	}
	return c.JSON(http.StatusOK, results)
}

// Transcript returns a video's metadata plus a repair-focused summary of its
// description.
func (h *Handler) Transcript(c echo.Context) error {
	var req dto.TranscriptRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.VideoID == "" {
		return shared.BadRequest("missing_video_id", "video_id must not be empty")
	}

	summary, err := h.service.Transcript(c.Request().Context(), req.VideoID)
	if errors.Is(err, ErrVideoNotFound) {
		return shared.NotFound("video_not_found", "video not found")
	}
	if errors.Is(err, errNoAPIKey) {
		return shared.BadGateway("transcript_unavailable", "video lookup is not configured")
	}
	if err != nil {
		h.logger.Error("transcript lookup failed", "error", err)
		return shared.BadGateway("transcript_failed", "transcript lookup unavailable")
	}
	return c.JSON(http.StatusOK, summary)
}
