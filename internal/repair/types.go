package repair

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Video struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail"`
}

// Guide is an extracted repair article, usually from a dedicated repair site.
type Guide struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// RedditPost is one community discussion hit.
type RedditPost struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Subreddit   string `json:"subreddit"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
	Snippet     string `json:"snippet"`
}

// Resources bundles everything the concurrent search produces for one item.
type Resources struct {
	Query  string         `json:"query"`
	Web    []SearchResult `json:"web"`
	Videos []Video        `json:"videos"`
	Parts  []SearchResult `json:"parts"`
	Reddit []RedditPost   `json:"reddit"`
	Guide  *Guide         `json:"guide,omitempty"`
}

// VideoSummary is the transcript-style digest of a repair tutorial video.
type VideoSummary struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
}

// Item is the detected object the searches are built from.
type Item struct {
	Object    string
	Brand     string
	Model     string
	Condition string
	Issues    []string
}
