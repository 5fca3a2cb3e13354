package repair

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const videosJSON = `{
  "items": [
    {"id": "abc123", "snippet": {
      "title": "Drill Chuck Replacement Guide",
      "channelTitle": "FixItAll",
      "description": "Full walkthrough of removing and replacing a seized drill chuck."
    }}
  ]
}`

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) SummarizeRepairVideo(ctx context.Context, title, content string) (string, error) {
	f.calls++
	return f.summary, f.err
}

func newTranscriptService(t *testing.T, handler http.HandlerFunc, sum Summarizer) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewService(ServiceConfig{YouTubeAPIKey: "test-key", Summarizer: sum, Logger: discardLogger()})
	s.youtube.videosURL = srv.URL + "/"
	return s
}

func TestTranscript(t *testing.T) {
	sum := &fakeSummarizer{summary: "1. Remove the chuck screw\n2. Unscrew the chuck"}
	s := newTranscriptService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "abc123" {
			t.Errorf("id = %q", r.URL.Query().Get("id"))
		}
		fmt.Fprint(w, videosJSON)
	}, sum)

	result, err := s.Transcript(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if result.Title != "Drill Chuck Replacement Guide" {
		t.Errorf("title = %q", result.Title)
	}
	if result.Channel != "FixItAll" {
		t.Errorf("channel = %q", result.Channel)
	}
	if !strings.HasPrefix(result.Summary, "1. Remove") {
		t.Errorf("summary = %q", result.Summary)
	}
	if sum.calls != 1 {
		t.Errorf("summarizer calls = %d", sum.calls)
	}
}

func TestTranscript_VideoNotFound(t *testing.T) {
	s := newTranscriptService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}, nil)

	if _, err := s.Transcript(context.Background(), "missing"); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestTranscript_SummaryFailureDegrades(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("model offline")}
	s := newTranscriptService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, videosJSON)
	}, sum)

	result, err := s.Transcript(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if result.Summary != "" {
		t.Errorf("summary should stay empty on failure, got %q", result.Summary)
	}
	if result.Description == "" {
		t.Error("description should still be returned")
	}
}

func TestTranscript_NoAPIKey(t *testing.T) {
	s := NewService(ServiceConfig{Logger: discardLogger()})

	if _, err := s.Transcript(context.Background(), "abc123"); !errors.Is(err, errNoAPIKey) {
		t.Fatalf("expected errNoAPIKey, got %v", err)
	}
}
