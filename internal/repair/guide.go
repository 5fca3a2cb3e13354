package repair

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxExcerptLen = 600

// guideExtractor fetches the top guide search hit and pulls a readable
// excerpt out of the article body.
type guideExtractor struct {
	httpClient *http.Client
	web        *webSearcher
}

func newGuideExtractor(client *http.Client, web *webSearcher) *guideExtractor {
	return &guideExtractor{httpClient: client, web: web}
}

func (g *guideExtractor) Find(ctx context.Context, query string) (*Guide, error) {
	hits, err := g.web.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	top := hits[0]
	excerpt, err := g.extract(ctx, top.URL)
	if err != nil {
		// The article may be unreachable; the search hit alone is still
		// useful.
		return &Guide{Title: top.Title, URL: top.URL, Excerpt: top.Snippet}, nil
	}

	return &Guide{Title: top.Title, URL: top.URL, Excerpt: excerpt}, nil
}

func (g *guideExtractor) extract(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch guide: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("guide page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse guide page: %w", err)
	}

	// Prefer semantic containers, fall back to the whole body.
	var paras []string
	for _, container := range []string{"article p", "main p", "body p"} {
		doc.Find(container).Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if len(text) > 40 {
				paras = append(paras, text)
			}
		})
		if len(paras) > 0 {
			break
		}
	}
	if len(paras) == 0 {
		return "", fmt.Errorf("no readable content")
	}

	excerpt := strings.Join(paras, "\n\n")
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen] + "..."
	}
	return excerpt, nil
}
