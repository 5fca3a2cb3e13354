package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rtr-labs/repaircam/internal/dto"
	"github.com/rtr-labs/repaircam/internal/shared"
	"github.com/rtr-labs/repaircam/internal/vision"
)

type Handler struct {
	store   *Store
	metrics *Metrics
	frames  *vision.Store
	logger  *slog.Logger
}

func NewHandler(store *Store, metrics *Metrics, frames *vision.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		metrics: metrics,
		frames:  frames,
		logger:  logger.With("component", "session-handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/sessions")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/messages", h.AddMessage)
	g.GET("/:id/messages", h.GetMessages)
	g.GET("/:id/items", h.GetItems)
	g.GET("/:id/context", h.GetContext)
	g.POST("/:id/context", h.AppendContext)
	g.PUT("/:id/items/:itemID", h.UpdateItem)

	e.GET("/api/metrics/vision", h.VisionMetrics)
}

func (h *Handler) Create(c echo.Context) error {
	var req dto.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}

	sess, err := h.store.CreateSession(c.Request().Context(), req.Title)
	if err != nil {
		h.logger.Error("create session failed", "error", err)
		return shared.InternalError("create_failed", "could not create session")
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) List(c echo.Context) error {
	sessions, err := h.store.ListSessions(c.Request().Context())
	if err != nil {
		h.logger.Error("list sessions failed", "error", err)
		return shared.InternalError("list_failed", "could not list sessions")
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) Get(c echo.Context) error {
	sess, err := h.store.GetSessionFull(c.Request().Context(), c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("session_not_found", "session not found")
	}
	if err != nil {
		h.logger.Error("get session failed", "error", err)
		return shared.InternalError("get_failed", "could not load session")
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Delete(c echo.Context) error {
	err := h.store.DeleteSession(c.Request().Context(), c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("session_not_found", "session not found")
	}
	if err != nil {
		h.logger.Error("delete session failed", "error", err)
		return shared.InternalError("delete_failed", "could not delete session")
	}

	// Best effort; any stored frames also disappear when their TTL expires.
	if h.frames != nil {
		if err := h.frames.DeleteFrames(c.Request().Context(), c.Param("id")); err != nil {
			h.logger.Warn("frame cleanup failed", "error", err)
		}
	}
	return c.JSON(http.StatusOK, dto.StatusResponse{Status: "deleted"})
}

func (h *Handler) AddMessage(c echo.Context) error {
	var req dto.AddMessageRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.Role != "user" && req.Role != "assistant" {
		return shared.BadRequest("invalid_role", "role must be user or assistant")
	}
	if req.Content == "" {
		return shared.BadRequest("empty_content", "content must not be empty")
	}

	msg, err := h.store.AddMessage(c.Request().Context(), c.Param("id"), req.Role, req.Content, req.Images...)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("session_not_found", "session not found")
	}
	if err != nil {
		h.logger.Error("add message failed", "error", err)
		return shared.InternalError("message_failed", "could not store message")
	}
	return c.JSON(http.StatusCreated, msg)
}

// GetMessages returns the full history, or with ?recent=true the trimmed
// conversational window used for prompt building.
func (h *Handler) GetMessages(c echo.Context) error {
	var msgs []*Message
	var err error
	if c.QueryParam("recent") == "true" {
		msgs, err = h.store.GetRecentMessages(c.Request().Context(), c.Param("id"))
	} else {
		msgs, err = h.store.GetMessages(c.Request().Context(), c.Param("id"))
	}
	if err != nil {
		h.logger.Error("get messages failed", "error", err)
		return shared.InternalError("messages_failed", "could not load messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *Handler) GetItems(c echo.Context) error {
	items, err := h.store.GetDetectedItems(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("get items failed", "error", err)
		return shared.InternalError("items_failed", "could not load detected items")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetContext(c echo.Context) error {
	entries, err := h.store.GetContext(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("get context failed", "error", err)
		return shared.InternalError("context_failed", "could not load context")
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) AppendContext(c echo.Context) error {
	var req dto.AppendContextRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.Entry == "" {
		return shared.BadRequest("empty_entry", "entry must not be empty")
	}

	if _, err := h.store.GetSession(c.Request().Context(), c.Param("id")); errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("session_not_found", "session not found")
	} else if err != nil {
		h.logger.Error("get session failed", "error", err)
		return shared.InternalError("context_failed", "could not load session")
	}

	if err := h.store.AppendContext(c.Request().Context(), c.Param("id"), req.Entry); err != nil {
		h.logger.Error("append context failed", "error", err)
		return shared.InternalError("context_failed", "could not store context")
	}
	return c.JSON(http.StatusOK, dto.StatusResponse{Status: "stored"})
}

func (h *Handler) UpdateItem(c echo.Context) error {
	var req dto.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.Object == "" {
		return shared.BadRequest("empty_object", "object must not be empty")
	}

	item := &DetectedItem{
		ID:           c.Param("itemID"),
		SessionID:    c.Param("id"),
		Object:       req.Object,
		Brand:        req.Brand,
		Model:        req.Model,
		SerialNumber: req.SerialNumber,
		Condition:    req.Condition,
		Issues:       shared.StringSlice(req.Issues),
		Description:  req.Description,
	}
	err := h.store.UpdateDetectedItem(c.Request().Context(), item)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("item_not_found", "detected item not found")
	}
	if err != nil {
		h.logger.Error("update item failed", "error", err)
		return shared.InternalError("update_failed", "could not update item")
	}

	updated, err := h.store.GetDetectedItem(c.Request().Context(), item.SessionID, item.ID)
	if err != nil {
		h.logger.Error("reload item failed", "error", err)
		return shared.InternalError("update_failed", "could not reload item")
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) VisionMetrics(c echo.Context) error {
	snapshot, err := h.metrics.Snapshot(c.Request().Context())
	if err != nil {
		h.logger.Error("metrics snapshot failed", "error", err)
		return shared.InternalError("metrics_failed", "could not load metrics")
	}
	return c.JSON(http.StatusOK, snapshot)
}
