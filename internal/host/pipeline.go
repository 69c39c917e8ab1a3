package host

import (
	"context"
	"time"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
	"github.com/MimeLyc/subtitle-adskip/internal/classifier"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/internal/page"
	"github.com/MimeLyc/subtitle-adskip/internal/subtitle"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// shortVideoLimit is the longest video skipped when the user ignores short
// videos, in seconds.
const shortVideoLimit = 5 * 60

// DefaultConfigWait bounds how long a run waits for CONFIG before giving up.
const DefaultConfigWait = 10 * time.Second

type Normalizer interface {
	Normalize(ctx context.Context, info *page.PlayerInfo) (*subtitle.Document, error)
}

type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) (*classifier.AdTimeRange, error)
}

// VideoDataSource yields the page state of a video: title, description
// and duration.
type VideoDataSource interface {
	VideoData(ctx context.Context, videoID string) (*page.VideoData, error)
}

// Pipeline takes one player metadata response to an ad range on screen.
// It is shared by the interceptor and the navigation watcher.
type Pipeline struct {
	loc        Location
	gate       *ConfigGate
	mirror     *RangeMirror
	normalizer Normalizer
	classifier Classifier
	videos     VideoDataSource
	ui         UI
	notifier   classifier.Notifier
	configWait time.Duration
}

// Run processes info for videoID. A nil range with a nil error means the
// video has no ad, was skipped, or has no subtitles.
//
// UI effects only happen while videoID is still on screen. When the user
// navigated away meanwhile, Run returns errs.NavigationRace; a range found
// by the backend has still been forwarded for caching.
func (p *Pipeline) Run(ctx context.Context, videoID string, info *page.PlayerInfo) (*adrange.Range, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.configWait)
	cfg, err := p.gate.Wait(waitCtx)
	cancel()
	if err != nil {
		log.Warn("No configuration for %s after %s: %v", videoID, p.configWait, err)
		if ctx.Err() == nil {
			p.notifier.Notify(errs.TypeOf(err).Notification())
		}
		return nil, err
	}

	data := p.videoData(ctx, videoID)
	if cfg.IgnoreShortVideos && data.Duration > 0 && data.Duration <= shortVideoLimit {
		log.Info("Ignoring video %s: duration %.2fs is not above %ds", videoID, data.Duration, shortVideoLimit)
		return nil, nil
	}

	if r, ok := p.mirror.Get(videoID); ok {
		log.Info("Ad time range cache found for video %s", videoID)
		return p.show(videoID, r, cfg.AutoSkip)
	}

	doc, err := p.normalizer.Normalize(ctx, info)
	switch {
	case errs.Is(err, errs.NotAuthenticated):
		log.Error("Not logged in, subtitles of %s are unavailable", videoID)
		p.notifier.Notify(errs.MsgNotLoginYet)
		return nil, err
	case errs.Is(err, errs.NoSubtitles):
		log.Warn("No subtitles found for %s", videoID)
		if p.onScreen(videoID) {
			p.ui.ShowWarning(videoID, warningDuration)
		}
		return nil, nil
	case err != nil:
		log.Error("Normalizing subtitles of %s failed: %v", videoID, err)
		// no subtitle text means no classification for this video
		if ctx.Err() == nil {
			p.notifier.Notify(errs.MsgAIServiceFailed)
		}
		return nil, err
	}

	if p.onScreen(videoID) {
		p.ui.ShowThinking(videoID)
	}
	r, err := p.classifier.Classify(ctx, classifier.Request{
		VideoID:     videoID,
		Subtitles:   doc.Text,
		Language:    doc.Language,
		Title:       data.Title,
		Description: data.Desc,
	})
	if p.onScreen(videoID) {
		p.ui.ClearAffordance()
	}
	if err != nil {
		return nil, err
	}
	if r == nil {
		log.Info("No ads detected in video %s", videoID)
		return nil, nil
	}

	p.mirror.Put(videoID, *r)
	return p.show(videoID, *r, cfg.AutoSkip)
}

func (p *Pipeline) show(videoID string, r adrange.Range, autoSkip bool) (*adrange.Range, error) {
	if !p.onScreen(videoID) {
		current := page.VideoIDFromPath(p.loc.Path())
		log.Info("Result for %s arrived after navigating to %s, not shown", videoID, current)
		return nil, errs.New(errs.NavigationRace, "navigated away before the result arrived").
			WithContext("video", videoID).
			WithContext("current", current)
	}
	p.ui.ShowAdRange(videoID, r, autoSkip)
	return &r, nil
}

func (p *Pipeline) onScreen(videoID string) bool {
	return page.VideoIDFromPath(p.loc.Path()) == videoID
}

// videoData never returns nil; unknown fields stay zero.
func (p *Pipeline) videoData(ctx context.Context, videoID string) *page.VideoData {
	if p.videos == nil {
		return &page.VideoData{BVID: videoID}
	}
	data, err := p.videos.VideoData(ctx, videoID)
	if err != nil || data == nil {
		log.Warn("Page state of %s unavailable: %v", videoID, err)
		return &page.VideoData{BVID: videoID}
	}
	return data
}
