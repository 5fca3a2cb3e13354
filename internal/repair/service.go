package repair

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var (
	errNoAPIKey = errors.New("youtube api key not configured")

	// ErrVideoNotFound means the transcript lookup resolved no such video.
	ErrVideoNotFound = errors.New("video not found")
)

// Summarizer condenses a video title and description into repair guidance.
type Summarizer interface {
	SummarizeRepairVideo(ctx context.Context, title, content string) (string, error)
}

type ServiceConfig struct {
	YouTubeAPIKey string
	Timeout       time.Duration
	Summarizer    Summarizer
	Logger        *slog.Logger
}

// Service fans out the web, video, parts, community and guide searches for a
// detected item. Individual search failures are logged and degrade to empty
// results.
type Service struct {
	web        *webSearcher
	youtube    *youtubeSearcher
	reddit     *redditSearcher
	guides     *guideExtractor
	summarizer Summarizer
	logger     *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	web := newWebSearcher(client)
	return &Service{
		web:        web,
		youtube:    newYouTubeSearcher(client, cfg.YouTubeAPIKey),
		reddit:     newRedditSearcher(client, web),
		guides:     newGuideExtractor(client, web),
		summarizer: cfg.Summarizer,
		logger:     cfg.Logger.With("component", "repair-search"),
	}
}

func (s *Service) Search(ctx context.Context, item Item) *Resources {
	repairQuery := BuildRepairQuery(item)
	out := &Resources{
		Query:  repairQuery,
		Web:    []SearchResult{},
		Videos: []Video{},
		Parts:  []SearchResult{},
		Reddit: []RedditPost{},
	}

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		results, err := s.web.Search(ctx, repairQuery)
		if err != nil {
			s.logger.Warn("web search failed", "error", err, "query", repairQuery)
			return
		}
		out.Web = results
	}()

	go func() {
		defer wg.Done()
		videos, err := s.youtube.Search(ctx, repairQuery)
		if err != nil {
			s.logger.Warn("video search failed", "error", err)
			return
		}
		if videos != nil {
			out.Videos = videos
		}
	}()

	go func() {
		defer wg.Done()
		query := BuildPartsQuery(item)
		results, err := s.web.Search(ctx, query)
		if err != nil {
			s.logger.Warn("parts search failed", "error", err, "query", query)
			return
		}
		out.Parts = results
	}()

	go func() {
		defer wg.Done()
		posts, err := s.reddit.Search(ctx, repairQuery)
		if err != nil {
			s.logger.Warn("reddit search failed", "error", err, "query", repairQuery)
			return
		}
		if posts != nil {
			out.Reddit = posts
		}
	}()

	go func() {
		defer wg.Done()
		guide, err := s.guides.Find(ctx, BuildGuideQuery(item))
		if err != nil {
			s.logger.Warn("guide search failed", "error", err)
			return
		}
		out.Guide = guide
	}()

	wg.Wait()
	return out
}

// SearchParts runs only the replacement-part lookup.
func (s *Service) SearchParts(ctx context.Context, item Item) ([]SearchResult, error) {
	return s.web.Search(ctx, BuildPartsQuery(item))
}

const maxDescriptionChars = 500

// Transcript resolves a video's metadata and produces a repair-focused
// summary of its description. Without a summarizer the metadata is returned
// as-is.
func (s *Service) Transcript(ctx context.Context, videoID string) (*VideoSummary, error) {
	info, err := s.youtube.videoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrVideoNotFound
	}

	if s.summarizer != nil && info.Description != "" {
		summary, err := s.summarizer.SummarizeRepairVideo(ctx, info.Title, info.Description)
		if err != nil {
			s.logger.Warn("video summary failed", "error", err, "video_id", videoID)
		} else {
			info.Summary = summary
		}
	}
	if len(info.Description) > maxDescriptionChars {
		info.Description = info.Description[:maxDescriptionChars]
	}
	return info, nil
}
