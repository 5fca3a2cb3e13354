package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rtr-labs/repaircam/internal/stream"
)

type recordingSink struct {
	mu    sync.Mutex
	saved []string
}

func (s *recordingSink) SaveDetection(_ context.Context, sessionID string, _ *stream.DetectionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, sessionID)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

// slowOllama answers like fakeOllama but waits before responding, so a second
// frame can arrive while the first inference is still running.
func slowOllama(t *testing.T, response string, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		json.NewEncoder(w).Encode(generateResponse{Response: response, Done: true})
	}))
}

func newWSTest(t *testing.T, ollamaResponse string, delay time.Duration, sink DetectionSink, minConfidence float64) *websocket.Conn {
	t.Helper()

	srv := slowOllama(t, ollamaResponse, delay)
	t.Cleanup(srv.Close)

	detector := NewDetector(NewClient(Config{OllamaURL: srv.URL, Model: "m"}), discardLogger())
	handler := NewStreamHandler(StreamHandlerConfig{
		Detector:      detector,
		Sink:          sink,
		RateLimit:     time.Millisecond,
		MinConfidence: minConfidence,
		Logger:        discardLogger(),
	})

	e := echo.New()
	handler.RegisterRoutes(e)
	app := httptest.NewServer(e)
	t.Cleanup(app.Close)

	url := "ws" + strings.TrimPrefix(app.URL, "http") + "/ws/vision"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendFrame(t *testing.T, ws *websocket.Conn, sessionID string) {
	t.Helper()
	frame := base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
	err := ws.WriteJSON(stream.FrameMessage{Type: stream.TypeFrame, Data: frame, SessionID: sessionID})
	if err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readUntil(t *testing.T, ws *websocket.Conn, types ...stream.MessageType) stream.ServerMessage {
	t.Helper()
	wanted := make(map[stream.MessageType]bool, len(types))
	for _, mt := range types {
		wanted[mt] = true
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg stream.ServerMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (waiting for %v)", err, types)
		}
		if wanted[msg.Type] {
			return msg
		}
	}
}

func TestStreamHandler_PingPong(t *testing.T) {
	ws := newWSTest(t, "{}", 0, nil, 0.5)

	if err := ws.WriteJSON(stream.FrameMessage{Type: stream.TypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	msg := readUntil(t, ws, stream.TypePong)
	if msg.Type != stream.TypePong {
		t.Fatalf("type = %q", msg.Type)
	}
}

func TestStreamHandler_CompleteCycle(t *testing.T) {
	response := `{"object":"kettle","brand":"Unknown","model":"Unknown","condition":"good","issues":[],"description":"electric kettle","confidence":0.9}`
	sink := &recordingSink{}
	ws := newWSTest(t, response, 0, sink, 0.5)

	sendFrame(t, ws, "sess_123")

	started := readUntil(t, ws, stream.TypeProcessingStarted)
	if started.Timestamp == 0 {
		t.Error("processing_started missing timestamp")
	}

	done := readUntil(t, ws, stream.TypeComplete, stream.TypeError)
	if done.Type != stream.TypeComplete {
		t.Fatalf("terminal = %+v", done)
	}
	if done.Result == nil || done.Result.Object != "kettle" {
		t.Fatalf("result = %+v", done.Result)
	}
	if done.Confidence != 0.9 {
		t.Errorf("confidence = %v", done.Confidence)
	}
	if sink.count() != 1 {
		t.Errorf("saved detections = %d, want 1", sink.count())
	}
}

func TestStreamHandler_LowConfidenceNotSaved(t *testing.T) {
	response := `{"object":"blur","brand":"Unknown","model":"Unknown","condition":"unknown","issues":[],"description":"unclear","confidence":0.2}`
	sink := &recordingSink{}
	ws := newWSTest(t, response, 0, sink, 0.5)

	sendFrame(t, ws, "sess_123")

	msg := readUntil(t, ws, stream.TypeLowConfidence, stream.TypeComplete, stream.TypeError)
	if msg.Type != stream.TypeLowConfidence {
		t.Fatalf("terminal = %+v", msg)
	}
	if sink.count() != 0 {
		t.Errorf("low confidence result must not be saved, got %d", sink.count())
	}
}

func TestStreamHandler_BusyDropsSecondFrame(t *testing.T) {
	response := `{"object":"lamp","brand":"Unknown","model":"Unknown","condition":"good","issues":[],"description":"desk lamp","confidence":0.9}`
	ws := newWSTest(t, response, 300*time.Millisecond, nil, 0.5)

	sendFrame(t, ws, "")
	readUntil(t, ws, stream.TypeProcessingStarted)
	sendFrame(t, ws, "")

	// The second frame must be rejected while the first is still in flight.
	msg := readUntil(t, ws, stream.TypeDropped, stream.TypeComplete)
	if msg.Type != stream.TypeDropped {
		t.Fatalf("expected dropped before first completes, got %+v", msg)
	}
	if msg.Reason == "" {
		t.Error("dropped message missing reason")
	}

	final := readUntil(t, ws, stream.TypeComplete, stream.TypeError)
	if final.Type != stream.TypeComplete {
		t.Fatalf("first frame terminal = %+v", final)
	}
}

func TestStreamHandler_InvalidBase64(t *testing.T) {
	ws := newWSTest(t, "{}", 0, nil, 0.5)

	err := ws.WriteJSON(stream.FrameMessage{Type: stream.TypeFrame, Data: "not base64 at all!!!"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, ws, stream.TypeError)
	if msg.Message == "" {
		t.Error("error message empty")
	}
}

func TestStreamHandler_NoSessionNotSaved(t *testing.T) {
	response := `{"object":"fan","brand":"Unknown","model":"Unknown","condition":"used","issues":[],"description":"table fan","confidence":0.8}`
	sink := &recordingSink{}
	ws := newWSTest(t, response, 0, sink, 0.5)

	sendFrame(t, ws, "")
	readUntil(t, ws, stream.TypeComplete)

	if sink.count() != 0 {
		t.Errorf("detections without a session must not be saved, got %d", sink.count())
	}
}
