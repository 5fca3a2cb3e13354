package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rtr-labs/repaircam/internal/stream"
)

const maxFrameMessageSize = 4 * 1024 * 1024

var visionUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DetectionSink persists a confident terminal result against a chat session.
type DetectionSink interface {
	SaveDetection(ctx context.Context, sessionID string, data *stream.DetectionData) error
}

// UsageRecorder tracks per-hour detection counters; failures are best-effort.
type UsageRecorder interface {
	RecordFrame(ctx context.Context)
	RecordDetection(ctx context.Context, latency time.Duration)
	RecordDropped(ctx context.Context)
	RecordLowConfidence(ctx context.Context)
	RecordError(ctx context.Context)
}

type StreamHandlerConfig struct {
	Detector      *Detector
	Frames        *Store
	Sink          DetectionSink
	Usage         UsageRecorder
	RateLimit     time.Duration
	MinConfidence float64
	Logger        *slog.Logger
}

// StreamHandler serves the live vision WebSocket endpoint. One inference runs
// at a time; frames arriving while the model is busy are dropped immediately
// rather than queued, and each client is additionally rate limited.
type StreamHandler struct {
	detector      *Detector
	frames        *Store
	sink          DetectionSink
	usage         UsageRecorder
	rateLimit     time.Duration
	minConfidence float64
	logger        *slog.Logger

	mu   sync.Mutex
	busy bool
}

func NewStreamHandler(cfg StreamHandlerConfig) *StreamHandler {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2 * time.Second
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &StreamHandler{
		detector:      cfg.Detector,
		frames:        cfg.Frames,
		sink:          cfg.Sink,
		usage:         cfg.Usage,
		rateLimit:     cfg.RateLimit,
		minConfidence: cfg.MinConfidence,
		logger:        cfg.Logger.With("component", "vision-stream"),
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/vision", h.HandleWS)
}

type liveConn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	last    time.Time
}

func (c *liveConn) sendJSON(v any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.ws.WriteJSON(v); err != nil {
		c.logger.Debug("send failed", "error", err)
	}
}

// allow implements the per-client rate limit: at most one analysis per
// rateLimit window, checked and advanced atomically.
func (c *liveConn) allow(limit time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.last) < limit {
		return false
	}
	c.last = now
	return true
}

func (h *StreamHandler) HandleWS(c echo.Context) error {
	ws, err := visionUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	clientID := uuid.NewString()
	conn := &liveConn{
		ws:     ws,
		logger: h.logger.With("client_id", clientID),
	}
	conn.logger.Info("client connected")
	defer func() {
		ws.Close()
		conn.logger.Info("client disconnected")
	}()

	ws.SetReadLimit(maxFrameMessageSize)
	ctx := c.Request().Context()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.logger.Error("websocket read error", "error", err)
			}
			return nil
		}

		var msg stream.FrameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.logger.Warn("dropping malformed message", "error", err)
			continue
		}

		switch msg.Type {
		case stream.TypeFrame:
			// Fire and forget; the read loop must keep draining so a slow
			// inference never blocks pings.
			go h.processFrame(ctx, conn, msg.Data, msg.SessionID)
		case stream.TypePing:
			conn.sendJSON(stream.ServerMessage{Type: stream.TypePong})
		default:
			conn.logger.Warn("unexpected message type", "type", msg.Type)
		}
	}
}

func (h *StreamHandler) processFrame(ctx context.Context, conn *liveConn, data, sessionID string) {
	if h.usage != nil {
		h.usage.RecordFrame(ctx)
	}

	// DROP policy: if an inference is already running, discard immediately.
	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		conn.sendJSON(stream.ServerMessage{
			Type:   stream.TypeDropped,
			Reason: "busy processing previous frame",
		})
		if h.usage != nil {
			h.usage.RecordDropped(ctx)
		}
		return
	}

	if !conn.allow(h.rateLimit) {
		h.mu.Unlock()
		return // silently drop, too soon
	}

	h.busy = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.busy = false
		h.mu.Unlock()
	}()

	frame, err := base64.StdEncoding.DecodeString(stream.StripDataURI(data))
	if err != nil {
		conn.sendJSON(stream.ServerMessage{Type: stream.TypeError, Message: "invalid frame encoding"})
		if h.usage != nil {
			h.usage.RecordError(ctx)
		}
		return
	}

	start := time.Now()
	if h.frames != nil && sessionID != "" {
		if err := h.frames.StoreFrame(ctx, &Frame{
			SessionID: sessionID,
			Timestamp: start.UnixMilli(),
			Data:      frame,
		}); err != nil {
			conn.logger.Warn("frame store failed", "error", err)
		}
	}

	conn.sendJSON(stream.ServerMessage{
		Type:      stream.TypeProcessingStarted,
		Timestamp: start.UnixMilli(),
	})

	live, err := h.detector.DetectLive(ctx, frame, func(token, partial string) {
		conn.sendJSON(stream.ServerMessage{
			Type:    stream.TypeToken,
			Token:   token,
			Partial: partial,
		})
	})
	if err != nil {
		conn.logger.Error("live detection failed", "error", err)
		conn.sendJSON(stream.ServerMessage{Type: stream.TypeError, Message: "processing error"})
		if h.usage != nil {
			h.usage.RecordError(ctx)
		}
		return
	}

	switch {
	case live.Skipped:
		conn.sendJSON(stream.ServerMessage{Type: stream.TypeDropped, Reason: live.Reason})
		if h.usage != nil {
			h.usage.RecordDropped(ctx)
		}
	case live.ErrMessage != "":
		conn.sendJSON(stream.ServerMessage{Type: stream.TypeError, Message: live.ErrMessage})
		if h.usage != nil {
			h.usage.RecordError(ctx)
		}
	case live.Confidence < h.minConfidence:
		conn.sendJSON(stream.ServerMessage{
			Type:       stream.TypeLowConfidence,
			Confidence: live.Confidence,
			Message:    "detection confidence too low, try better lighting or angle",
		})
		if h.usage != nil {
			h.usage.RecordLowConfidence(ctx)
		}
	default:
		if h.sink != nil && sessionID != "" {
			if err := h.sink.SaveDetection(ctx, sessionID, live.Data); err != nil {
				conn.logger.Error("save detection failed", "error", err, "session_id", sessionID)
			}
		}
		conn.sendJSON(stream.ServerMessage{
			Type:       stream.TypeComplete,
			Result:     live.Data,
			Confidence: live.Confidence,
		})
		if h.usage != nil {
			h.usage.RecordDetection(ctx, time.Since(start))
		}
	}
}
