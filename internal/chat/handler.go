package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rtr-labs/repaircam/internal/dto"
	"github.com/rtr-labs/repaircam/internal/repair"
	"github.com/rtr-labs/repaircam/internal/session"
	"github.com/rtr-labs/repaircam/internal/shared"
	"github.com/rtr-labs/repaircam/internal/stream"
	"github.com/rtr-labs/repaircam/internal/vision"
)

const (
	maxImageSize  = 8 * 1024 * 1024
	maxTitleChars = 30
	maxCardItems  = 4
)

// Detector runs single-shot detection and answers repair questions.
// Satisfied by the vision detector.
type Detector interface {
	DetectObject(ctx context.Context, image []byte) (*stream.DetectionData, error)
	Advise(ctx context.Context, req vision.AdviceRequest) (string, error)
}

// Searcher fans out the repair resource lookup for a detected item.
type Searcher interface {
	Search(ctx context.Context, item repair.Item) *repair.Resources
}

// Handler is the unified conversational endpoint: one message in, and the
// reply is detection, repair resources or plain advice depending on what the
// user sent.
type Handler struct {
	store    *session.Store
	detector Detector
	search   Searcher
	logger   *slog.Logger
}

func NewHandler(store *session.Store, detector Detector, search Searcher, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		detector: detector,
		search:   search,
		logger:   logger.With("component", "chat-handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/sessions/:id/message", h.SendMessage)
}

// SendMessage accepts a multipart form with a "message" text field and an
// optional "image" file, persists both sides of the exchange and returns the
// assistant's reply.
func (h *Handler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	if _, err := h.store.GetSession(ctx, sessionID); errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("session_not_found", "session not found")
	} else if err != nil {
		h.logger.Error("get session failed", "error", err)
		return shared.InternalError("chat_failed", "could not load session")
	}

	message := strings.TrimSpace(c.FormValue("message"))
	image, err := readImageForm(c)
	if err != nil {
		return err
	}
	if message == "" && image == nil {
		return shared.BadRequest("empty_message", "message or image required")
	}

	var imageDataURI string
	if image != nil {
		imageDataURI = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	}

	userContent := message
	if userContent == "" {
		userContent = "[Image uploaded]"
	}
	var userImages []string
	if imageDataURI != "" {
		userImages = []string{imageDataURI}
	}
	if _, err := h.store.AddMessage(ctx, sessionID, "user", userContent, userImages...); err != nil {
		h.logger.Error("save user message failed", "error", err)
		return shared.InternalError("chat_failed", "could not store message")
	}

	var reply dto.ChatResponse
	switch {
	case image != nil:
		reply = h.handleImage(ctx, sessionID, image)
	case message != "":
		reply = h.handleText(ctx, sessionID, message)
	}
	reply.SessionID = sessionID

	var assistantImages []string
	if reply.ResponseType == "detection" && imageDataURI != "" {
		assistantImages = []string{imageDataURI}
	}
	if _, err := h.store.AddMessage(ctx, sessionID, "assistant", reply.Message, assistantImages...); err != nil {
		h.logger.Error("save assistant message failed", "error", err)
		return shared.InternalError("chat_failed", "could not store reply")
	}

	return c.JSON(http.StatusOK, reply)
}

func (h *Handler) handleImage(ctx context.Context, sessionID string, image []byte) dto.ChatResponse {
	detection, err := h.detector.DetectObject(ctx, image)
	if err != nil {
		h.logger.Error("chat detection failed", "error", err)
		return dto.ChatResponse{
			Message:      "I couldn't analyze that image right now. Please try again in a moment.",
			ResponseType: "clarification",
		}
	}

	if !validDetection(detection) {
		return dto.ChatResponse{
			Message:      "I couldn't clearly identify the item in this image. Could you try uploading a clearer photo?",
			ResponseType: "clarification",
		}
	}

	if err := h.store.SaveDetection(ctx, sessionID, detection); err != nil {
		h.logger.Error("save detection failed", "error", err)
	}
	title := synthesizeTitle(detection)
	if err := h.store.UpdateTitle(ctx, sessionID, title); err != nil {
		h.logger.Warn("title update failed", "error", err)
	}

	return dto.ChatResponse{
		Message:      detectionMessage(title, detection),
		ResponseType: "detection",
		Data:         detection,
		Cards:        []dto.Card{{Type: "detection_card", Data: detection}},
	}
}

func (h *Handler) handleText(ctx context.Context, sessionID, message string) dto.ChatResponse {
	item := h.latestItem(ctx, sessionID)
	if item == nil {
		return dto.ChatResponse{
			Message: "I'd love to help you repair something! Please upload a photo of the " +
				"broken item and I'll identify it and find repair solutions for you.",
			ResponseType: "clarification",
		}
	}

	switch classify(message) {
	case intentResources:
		return h.handleResourceSearch(ctx, sessionID, item)
	case intentSerialHelp:
		return dto.ChatResponse{
			Message: "To find the serial number, look for a sticker on the back or bottom " +
				"of your device. It usually starts with 'S/N' or 'Serial'. Upload a photo " +
				"of it and I'll extract the details!",
			ResponseType: "clarification",
		}
	default:
		return h.handleAdvice(ctx, sessionID, message, item)
	}
}

func (h *Handler) handleResourceSearch(ctx context.Context, sessionID string, item *session.DetectedItem) dto.ChatResponse {
	resources := h.search.Search(ctx, repair.Item{
		Object:    item.Object,
		Brand:     item.Brand,
		Model:     item.Model,
		Condition: item.Condition,
		Issues:    item.Issues,
	})

	var cards []dto.Card
	var b strings.Builder
	b.WriteString("Here's what I found to help you repair your item:\n\n")
	if len(resources.Videos) > 0 {
		fmt.Fprintf(&b, "**%d Video Tutorials**\n", len(resources.Videos))
		cards = append(cards, dto.Card{Type: "youtube_card", Data: capVideos(resources.Videos)})
	}
	if len(resources.Web) > 0 {
		fmt.Fprintf(&b, "**%d Repair Guides & Articles**\n", len(resources.Web))
		cards = append(cards, dto.Card{Type: "guides_card", Data: capResults(resources.Web)})
	}
	if len(resources.Reddit) > 0 {
		fmt.Fprintf(&b, "**%d Community Discussions**\n", len(resources.Reddit))
		cards = append(cards, dto.Card{Type: "reddit_card", Data: capPosts(resources.Reddit)})
	}
	b.WriteString("\nClick on any card to learn more. Need help with something specific?")

	if err := h.store.AppendContext(ctx, sessionID, "Searched repairs for: "+resources.Query); err != nil {
		h.logger.Warn("context update failed", "error", err)
	}

	return dto.ChatResponse{
		Message:      b.String(),
		ResponseType: "repair_results",
		Data:         resources,
		Cards:        cards,
	}
}

func (h *Handler) handleAdvice(ctx context.Context, sessionID, message string, item *session.DetectedItem) dto.ChatResponse {
	req := vision.AdviceRequest{
		Question: message,
		Item:     itemSummary(item),
	}
	if recent, err := h.store.GetRecentMessages(ctx, sessionID); err == nil {
		for _, m := range recent {
			req.History = append(req.History, vision.AdviceTurn{Role: m.Role, Content: m.Content})
		}
	}
	if facts, err := h.store.GetContext(ctx, sessionID); err == nil {
		req.Facts = facts
	}

	answer, err := h.detector.Advise(ctx, req)
	if err != nil {
		h.logger.Error("advice generation failed", "error", err)
		return dto.ChatResponse{
			Message:      "I couldn't reach the assistant right now. Please try again in a moment.",
			ResponseType: "clarification",
		}
	}

	if topic := adviceTopic(message); topic != "" {
		if err := h.store.AppendContext(ctx, sessionID, "Discussed "+topic); err != nil {
			h.logger.Warn("context update failed", "error", err)
		}
	}

	return dto.ChatResponse{Message: answer, ResponseType: "text"}
}

func (h *Handler) latestItem(ctx context.Context, sessionID string) *session.DetectedItem {
	items, err := h.store.GetDetectedItems(ctx, sessionID)
	if err != nil || len(items) == 0 {
		return nil
	}
	return items[len(items)-1]
}

var invalidObjects = map[string]struct{}{
	"": {}, "unknown": {}, "n/a": {}, "none": {}, "blank": {}, "image": {},
}

func validDetection(d *stream.DetectionData) bool {
	if d == nil || d.Object == "Detection failed" {
		return false
	}
	_, invalid := invalidObjects[strings.ToLower(d.Object)]
	return !invalid
}

// synthesizeTitle builds a short session title like "Broken Laptop" or
// "Kettle leaking".
func synthesizeTitle(d *stream.DetectionData) string {
	title := d.Object
	switch strings.ToLower(d.Condition) {
	case "broken", "damaged":
		title = capitalize(d.Condition) + " " + d.Object
	default:
		if len(d.Issues) > 0 {
			title = d.Object + " " + firstIssueKeyword(d.Issues[0])
		}
	}
	if len(title) > maxTitleChars {
		title = title[:maxTitleChars]
	}
	return title
}

func firstIssueKeyword(issue string) string {
	if head, _, found := strings.Cut(issue, ":"); found {
		return head
	}
	fields := strings.Fields(issue)
	if len(fields) == 0 {
		return issue
	}
	return fields[0]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func detectionMessage(title string, d *stream.DetectionData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I identified this as a **%s**.\n\n", title)
	fmt.Fprintf(&b, "**Condition:** %s\n\n", capitalize(d.Condition))
	if len(d.Issues) > 0 {
		b.WriteString("**Issues detected:**\n")
		for _, issue := range d.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\n")
	}
	b.WriteString("Would you like me to search for repair guides and spare parts?")
	return b.String()
}

func itemSummary(item *session.DetectedItem) string {
	parts := []string{item.Object}
	if item.Brand != "" && !strings.EqualFold(item.Brand, "unknown") {
		parts = append([]string{item.Brand}, parts...)
	}
	summary := strings.Join(parts, " ")
	if item.Condition != "" {
		summary += " (condition: " + item.Condition + ")"
	}
	if len(item.Issues) > 0 {
		summary += ", issues: " + strings.Join(item.Issues, "; ")
	}
	return summary
}

func capVideos(v []repair.Video) []repair.Video {
	if len(v) > maxCardItems {
		return v[:maxCardItems]
	}
	return v
}

func capResults(r []repair.SearchResult) []repair.SearchResult {
	if len(r) > maxCardItems {
		return r[:maxCardItems]
	}
	return r
}

func capPosts(p []repair.RedditPost) []repair.RedditPost {
	if len(p) > maxCardItems {
		return p[:maxCardItems]
	}
	return p
}

func readImageForm(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		// A plain form post without the multipart file part is not an error.
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, shared.BadRequest("invalid_image", "invalid image upload")
	}
	if fh.Size > maxImageSize {
		return nil, shared.BadRequest("image_too_large", "image too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, shared.BadRequest("invalid_image", "unreadable image upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize))
	if err != nil {
		return nil, shared.BadRequest("invalid_image", "unreadable image upload")
	}
	return data, nil
}
