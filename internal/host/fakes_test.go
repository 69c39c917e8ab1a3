package host

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/classifier"
	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/page"
	"github.com/MimeLyc/subtitle-adskip/internal/protocol"
	"github.com/MimeLyc/subtitle-adskip/internal/subtitle"
)

type recordingUI struct {
	mu       sync.Mutex
	shown    map[string]adrange.Range
	thinking []string
	warnings []string
	toasts   []string
	cleanups int
}

func newRecordingUI() *recordingUI {
	return &recordingUI{shown: map[string]adrange.Range{}}
}

func (u *recordingUI) ShowAdRange(videoID string, r adrange.Range, _ bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.shown[videoID] = r
}

func (u *recordingUI) ShowThinking(videoID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.thinking = append(u.thinking, videoID)
}

func (u *recordingUI) ShowWarning(videoID string, _ time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.warnings = append(u.warnings, videoID)
}

func (u *recordingUI) ClearAffordance() {}

func (u *recordingUI) Cleanup() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cleanups++
}

func (u *recordingUI) Toast(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.toasts = append(u.toasts, message)
}

func (u *recordingUI) shownFor(videoID string) (adrange.Range, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	r, ok := u.shown[videoID]
	return r, ok
}

func (u *recordingUI) toastList() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.toasts...)
}

func (u *recordingUI) cleanupCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cleanups
}

type stubNormalizer struct {
	doc   *subtitle.Document
	err   error
	calls atomic.Int32
}

func (n *stubNormalizer) Normalize(context.Context, *page.PlayerInfo) (*subtitle.Document, error) {
	n.calls.Add(1)
	return n.doc, n.err
}

type stubClassifier struct {
	result  *classifier.AdTimeRange
	err     error
	release chan struct{}
	calls   atomic.Int32
	lastReq atomic.Value
}

func (c *stubClassifier) Classify(ctx context.Context, req classifier.Request) (*classifier.AdTimeRange, error) {
	c.calls.Add(1)
	c.lastReq.Store(req)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.result == nil {
		return nil, c.err
	}
	r := *c.result
	return &r, c.err
}

type staticVideos map[string]*page.VideoData

func (s staticVideos) VideoData(_ context.Context, videoID string) (*page.VideoData, error) {
	return s[videoID], nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	keys []string
}

func (n *recordingNotifier) Notify(key string) {
	n.mu.Lock()
	n.keys = append(n.keys, key)
	n.mu.Unlock()
}

func configPayload(mutate func(*config.UserConfig)) protocol.ConfigPayload {
	cfg := config.DefaultUserConfig()
	cfg.APIKey = "key"
	if mutate != nil {
		mutate(&cfg)
	}
	return protocol.ConfigPayload{Config: cfg, I18n: config.Messages(language.English)}
}

func sampleDocument() *subtitle.Document {
	cues := []subtitle.Cue{
		{StartTime: 0, EndTime: 2.5, Text: "hello"},
		{StartTime: 2.5, EndTime: 10, Text: "this video is sponsored"},
	}
	return &subtitle.Document{Cues: cues, Text: subtitle.Serialize(cues), Language: language.English}
}

func loggedInInfo(bvid string) *page.PlayerInfo {
	info, err := page.ParsePlayerInfo([]byte(`{"code":0,"data":{"bvid":"` + bvid + `","name":"viewer","subtitle":{"subtitles":[{"lan":"en","subtitle_url":"//sub.example/1.json"}]}}}`))
	if err != nil {
		panic(err)
	}
	return info
}
