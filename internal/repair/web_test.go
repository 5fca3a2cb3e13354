package repair

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

const searchPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.ifixit.com%2Fdrill-chuck&amp;rut=abc">Drill Chuck Replacement</a>
  <div class="result__snippet">Step by step chuck replacement.</div>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/fix-drill">Fixing a drill at home</a>
  <div class="result__snippet">A general guide.</div>
</div>
</body></html>`

func newTestWebSearcher(t *testing.T, page string) *webSearcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Error("missing q parameter")
		}
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)

	w := newWebSearcher(&http.Client{Timeout: 5 * time.Second})
	w.baseURL = srv.URL + "/"
	return w
}

func TestWebSearch(t *testing.T) {
	w := newTestWebSearcher(t, searchPage)

	results, err := w.Search(context.Background(), "drill chuck repair")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d", len(results))
	}

	first := results[0]
	if first.Title != "Drill Chuck Replacement" {
		t.Errorf("title = %q", first.Title)
	}
	if first.URL != "https://www.ifixit.com/drill-chuck" {
		t.Errorf("redirect not unwrapped: %q", first.URL)
	}
	if first.Snippet != "Step by step chuck replacement." {
		t.Errorf("snippet = %q", first.Snippet)
	}

	if results[1].URL != "https://example.com/fix-drill" {
		t.Errorf("direct url mangled: %q", results[1].URL)
	}
}

func TestWebSearch_EmptyPage(t *testing.T) {
	w := newTestWebSearcher(t, "<html><body>no results</body></html>")

	results, err := w.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len = %d", len(results))
	}
}

func TestWebSearch_CapsResults(t *testing.T) {
	var page string
	for i := 0; i < 10; i++ {
		page += fmt.Sprintf(`<div class="result"><a class="result__a" href="https://example.com/%d">Result %d</a></div>`, i, i)
	}
	w := newTestWebSearcher(t, "<html><body>"+page+"</body></html>")

	results, err := w.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != maxWebResults {
		t.Errorf("len = %d, want %d", len(results), maxWebResults)
	}
}

func TestWebSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	w := newWebSearcher(&http.Client{Timeout: time.Second})
	w.baseURL = srv.URL + "/"
	if _, err := w.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveRedirect(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{
			"uddg redirect",
			"//duckduckgo.com/l/?uddg=" + url.QueryEscape("https://ifixit.com/guide?step=2"),
			"https://ifixit.com/guide?step=2",
		},
		{"direct", "https://example.com/a", "https://example.com/a"},
		{"protocol relative", "//example.com/a", "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveRedirect(tt.href); got != tt.want {
				t.Errorf("resolveRedirect(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestYouTubeSearch_NoKeyDegrades(t *testing.T) {
	y := newYouTubeSearcher(&http.Client{Timeout: time.Second}, "")
	videos, err := y.Search(context.Background(), "drill repair")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if videos != nil {
		t.Errorf("videos = %v, want nil without api key", videos)
	}
}

func TestYouTubeSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		fmt.Fprint(w, `{"items":[{"id":{"videoId":"abc123"},"snippet":{"title":"Fix your drill","channelTitle":"RepairPro","thumbnails":{"medium":{"url":"https://i.ytimg.com/abc123.jpg"}}}}]}`)
	}))
	defer srv.Close()

	y := newYouTubeSearcher(&http.Client{Timeout: time.Second}, "test-key")
	y.baseURL = srv.URL

	videos, err := y.Search(context.Background(), "drill repair")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("len = %d", len(videos))
	}
	if videos[0].URL != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("url = %q", videos[0].URL)
	}
	if videos[0].Channel != "RepairPro" {
		t.Errorf("channel = %q", videos[0].Channel)
	}
}
