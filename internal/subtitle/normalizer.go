package subtitle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/internal/page"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// maxDocumentSize bounds a subtitle document download.
const maxDocumentSize = 16 << 20

// Normalizer turns a player metadata response into a Document.
type Normalizer struct {
	client *http.Client
}

func NewNormalizer(client *http.Client) *Normalizer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Normalizer{client: client}
}

// Normalize fetches the first subtitle track of info.
//
// It fails with errs.NotAuthenticated when the response was made for an
// anonymous user, and with errs.NoSubtitles when the video offers no usable
// track. Only the first track is considered.
func (n *Normalizer) Normalize(ctx context.Context, info *page.PlayerInfo) (*Document, error) {
	if !info.LoggedIn() {
		return nil, errs.New(errs.NotAuthenticated, "player metadata has no login name")
	}

	tracks := info.Tracks()
	if len(tracks) == 0 {
		return nil, errs.New(errs.NoSubtitles, "no subtitles found in response").
			WithContext("video", info.BVID())
	}
	track := tracks[0]
	if track.URL == "" {
		return nil, errs.New(errs.NoSubtitles, "first subtitle track has no url").
			WithContext("video", info.BVID())
	}

	url := track.AbsoluteURL()
	log.Debug("Subtitle track %s (%s) at %s", track.LanDoc, track.Lan, url)

	data, err := n.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	cues, err := ReadCues(data)
	if err != nil {
		return nil, err
	}

	return &Document{
		Cues:     cues,
		Text:     Serialize(cues),
		Language: detectLanguage(cues),
		Track:    track.LanDoc,
		URL:      url,
	}, nil
}

func (n *Normalizer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.Parse, "build subtitle request")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, errs.Unknown, "fetch subtitle document")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.Unknown, fmt.Sprintf("fetch subtitle document: status %d", resp.StatusCode)).
			WithContext("url", url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, errs.Wrap(err, errs.Unknown, "read subtitle document")
	}
	return data, nil
}
