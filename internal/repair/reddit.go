package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	redditSearchURL = "https://www.reddit.com/search.json"
	maxRedditPosts  = 4
	maxSnippetChars = 300
)

var subredditPattern = regexp.MustCompile(`/r/(\w+)/`)

// redditSearcher queries Reddit's public JSON search, which needs no
// credentials, and falls back to a site-scoped web search when the API
// returns nothing.
type redditSearcher struct {
	httpClient *http.Client
	baseURL    string
	web        *webSearcher
}

func newRedditSearcher(client *http.Client, web *webSearcher) *redditSearcher {
	return &redditSearcher{httpClient: client, baseURL: redditSearchURL, web: web}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string `json:"title"`
				Permalink   string `json:"permalink"`
				Subreddit   string `json:"subreddit"`
				Score       int    `json:"score"`
				NumComments int    `json:"num_comments"`
				Selftext    string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *redditSearcher) Search(ctx context.Context, query string) ([]RedditPost, error) {
	posts, err := r.searchJSON(ctx, query)
	if err == nil && len(posts) > 0 {
		return posts, nil
	}

	fallback, ferr := r.searchViaWeb(ctx, query)
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return nil, ferr
	}
	return fallback, nil
}

func (r *redditSearcher) searchJSON(ctx context.Context, query string) ([]RedditPost, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "relevance")
	params.Set("limit", fmt.Sprint(maxRedditPosts))
	params.Set("type", "link")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit search returned status %d", resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode reddit response: %w", err)
	}

	posts := make([]RedditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		data := child.Data
		if data.Title == "" || data.Permalink == "" {
			continue
		}
		snippet := data.Selftext
		if len(snippet) > maxSnippetChars {
			snippet = snippet[:maxSnippetChars]
		}
		posts = append(posts, RedditPost{
			Title:       data.Title,
			URL:         "https://reddit.com" + data.Permalink,
			Subreddit:   data.Subreddit,
			Score:       data.Score,
			NumComments: data.NumComments,
			Snippet:     snippet,
		})
		if len(posts) == maxRedditPosts {
			break
		}
	}
	return posts, nil
}

func (r *redditSearcher) searchViaWeb(ctx context.Context, query string) ([]RedditPost, error) {
	results, err := r.web.Search(ctx, "site:reddit.com "+query)
	if err != nil {
		return nil, err
	}

	var posts []RedditPost
	for _, res := range results {
		if !strings.Contains(res.URL, "reddit.com") {
			continue
		}
		subreddit := "unknown"
		if m := subredditPattern.FindStringSubmatch(res.URL); m != nil {
			subreddit = m[1]
		}
		posts = append(posts, RedditPost{
			Title:     res.Title,
			URL:       res.URL,
			Subreddit: subreddit,
			Snippet:   res.Snippet,
		})
		if len(posts) == maxRedditPosts {
			break
		}
	}
	return posts, nil
}
