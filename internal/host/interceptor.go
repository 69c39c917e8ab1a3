package host

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/MimeLyc/subtitle-adskip/internal/page"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// DefaultMetadataEndpoint identifies player metadata requests by URL.
const DefaultMetadataEndpoint = "api.bilibili.com/x/player/wbi/v2"

// Interceptor is an http.RoundTripper that observes the page's player
// metadata responses. The page always receives the response unchanged.
type Interceptor struct {
	next      http.RoundTripper
	loc       Location
	endpoint  string
	responses *ResponseCache
	// onMatch is called for a response whose video is the one on screen.
	// It must not block.
	onMatch func(videoID string, info *page.PlayerInfo)
}

func NewInterceptor(next http.RoundTripper, loc Location, endpoint string, responses *ResponseCache, onMatch func(string, *page.PlayerInfo)) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	if endpoint == "" {
		endpoint = DefaultMetadataEndpoint
	}
	return &Interceptor{
		next:      next,
		loc:       loc,
		endpoint:  endpoint,
		responses: responses,
		onMatch:   onMatch,
	}
}

func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := i.next.RoundTrip(req)
	if err != nil || !i.watches(req) {
		return resp, err
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Player metadata request failed with status %d", resp.StatusCode)
		return resp, nil
	}

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		// the page sees the same truncated body it would have seen
		log.Error("Reading player metadata failed: %v", err)
		return resp, nil
	}

	i.observe(raw, resp.Header.Get("Content-Encoding"))
	return resp, nil
}

func (i *Interceptor) watches(req *http.Request) bool {
	return page.IsVideoPath(i.loc.Path()) && strings.Contains(req.URL.String(), i.endpoint)
}

func (i *Interceptor) observe(raw []byte, encoding string) {
	body, err := decodeBody(raw, encoding)
	if err != nil {
		log.Error("Decoding player metadata failed: %v", err)
		return
	}
	info, err := page.ParsePlayerInfo(body)
	if err != nil {
		log.Error("Error parsing response: %v", err)
		return
	}

	bvid := info.BVID()
	if bvid == "" {
		log.Warn("Player metadata carries no video id")
		return
	}
	i.responses.Put(bvid, info)

	current := page.VideoIDFromPath(i.loc.Path())
	if bvid != current {
		log.Debug("Player metadata for %s while %s is on screen", bvid, current)
		return
	}
	if i.onMatch != nil {
		i.onMatch(bvid, info)
	}
}

func decodeBody(raw []byte, encoding string) ([]byte, error) {
	var reader io.Reader = bytes.NewReader(raw)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return raw, nil
	case "gzip":
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	case "br":
		reader = brotli.NewReader(reader)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
	return io.ReadAll(reader)
}
