package page

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// DefaultSiteURL is the site serving video pages.
const DefaultSiteURL = "https://www.bilibili.com"

// Fetcher loads the page state of a video by downloading its page. Results
// are kept for the fetcher's lifetime.
type Fetcher struct {
	client  *http.Client
	siteURL string

	mu    sync.Mutex
	cache map[string]*VideoData
}

func NewFetcher(client *http.Client, siteURL string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	return &Fetcher{
		client:  client,
		siteURL: strings.TrimRight(siteURL, "/"),
		cache:   make(map[string]*VideoData),
	}
}

// PageURL returns the page address of videoID.
func (f *Fetcher) PageURL(videoID string) string {
	return f.siteURL + videoPathPrefix + videoID + "/"
}

func (f *Fetcher) VideoData(ctx context.Context, videoID string) (*VideoData, error) {
	f.mu.Lock()
	data, ok := f.cache[videoID]
	f.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := Fetch(ctx, f.client, f.PageURL(videoID))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[videoID] = data
	f.mu.Unlock()
	return data, nil
}
