package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"
	youtubeVideosURL = "https://www.googleapis.com/youtube/v3/videos"
	maxVideos        = 4
)

type youtubeSearcher struct {
	httpClient *http.Client
	baseURL    string
	videosURL  string
	apiKey     string
}

func newYouTubeSearcher(client *http.Client, apiKey string) *youtubeSearcher {
	return &youtubeSearcher{
		httpClient: client,
		baseURL:    youtubeSearchURL,
		videosURL:  youtubeVideosURL,
		apiKey:     apiKey,
	}
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search looks up repair videos. Without an API key it returns no results
// rather than failing the whole resource lookup.
func (y *youtubeSearcher) Search(ctx context.Context, query string) ([]Video, error) {
	if y.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", fmt.Sprint(maxVideos))
	params.Set("q", query)
	params.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube search returned status %d", resp.StatusCode)
	}

	var parsed youtubeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode youtube response: %w", err)
	}

	videos := make([]Video, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			Title:     item.Snippet.Title,
			URL:       "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Channel:   item.Snippet.ChannelTitle,
			Thumbnail: item.Snippet.Thumbnails.Medium.URL,
		})
	}
	return videos, nil
}

type youtubeVideosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Description  string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
}

// videoInfo fetches the title, channel and description of a single video.
// A nil result with nil error means the video does not exist.
func (y *youtubeSearcher) videoInfo(ctx context.Context, videoID string) (*VideoSummary, error) {
	if y.apiKey == "" {
		return nil, errNoAPIKey
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)
	params.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.videosURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube video lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube video lookup returned status %d", resp.StatusCode)
	}

	var parsed youtubeVideosResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode youtube video response: %w", err)
	}
	if len(parsed.Items) == 0 {
		return nil, nil
	}

	snippet := parsed.Items[0].Snippet
	return &VideoSummary{
		VideoID:     videoID,
		Title:       snippet.Title,
		Channel:     snippet.ChannelTitle,
		Description: snippet.Description,
	}, nil
}
