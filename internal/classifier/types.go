// Package classifier asks a configured backend which part of a video's
// subtitles is an advertisement.
package classifier

import (
	"context"
	"encoding/json"

	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/internal/adrange"
)

// AdTimeRange is one advertisement interval; a nil *AdTimeRange means no ad.
type AdTimeRange = adrange.Range

// Kind tags the backend variants.
type Kind int

const (
	KindCloud Kind = iota
	KindWorkflow
	KindOnDevice
)

func (k Kind) String() string {
	switch k {
	case KindCloud:
		return "cloud"
	case KindWorkflow:
		return "workflow"
	case KindOnDevice:
		return "on-device"
	default:
		return "unknown"
	}
}

// Request is everything a backend is given about one video.
type Request struct {
	VideoID string
	// Subtitles is the serialized cue string, "[start-end]:text;..."
	Subtitles   string
	Language    language.Tag
	Title       string
	Description string
}

// Backend returns an untrusted candidate: JSON null or an object with
// startTime and endTime. The orchestrator validates it.
type Backend interface {
	Kind() Kind
	Classify(ctx context.Context, req Request) (json.RawMessage, error)
}

// Prober is implemented by backends with a cheap connectivity check.
type Prober interface {
	Probe(ctx context.Context) error
}

// LanguageModel is an on-device model capability. It is nil when the
// environment offers none.
type LanguageModel interface {
	Prompt(ctx context.Context, system, prompt string) (string, error)
}

// Notifier surfaces a localized message, identified by its message key.
type Notifier interface {
	Notify(key string)
}

// Sink receives every validated range. The host sends it to the privileged
// side as SAVE_AD_RANGE.
type Sink interface {
	SaveAdRange(ctx context.Context, videoID string, r AdTimeRange) error
}

// rangeSchema is the structured-output schema sent to backends that accept one.
var rangeSchema = json.RawMessage(`{"type":"object","properties":{"startTime":{"type":"number"},"endTime":{"type":"number"}},"required":["startTime","endTime"]}`)
