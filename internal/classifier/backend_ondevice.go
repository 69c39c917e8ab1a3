package classifier

import (
	"context"
	"encoding/json"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

// OnDeviceBackend prompts a local language model. Without a model every
// call fails with errs.NotInitialized; there is no fallback to another
// backend.
type OnDeviceBackend struct {
	model LanguageModel
}

func NewOnDeviceBackend(model LanguageModel) *OnDeviceBackend {
	return &OnDeviceBackend{model: model}
}

func (b *OnDeviceBackend) Kind() Kind { return KindOnDevice }

func (b *OnDeviceBackend) Classify(ctx context.Context, req Request) (json.RawMessage, error) {
	if b.model == nil {
		return nil, errs.New(errs.NotInitialized, "no on-device language model available")
	}

	system, prompt := BuildPrompt(req)
	text, err := b.model.Prompt(ctx, system, prompt)
	if err != nil {
		return nil, errs.Wrap(err, errs.BackendUnreachable, "on-device model failed")
	}
	candidate, ok := extractJSON(text)
	if !ok {
		return nil, errs.New(errs.InvalidResult, "on-device response is not JSON").WithContext("text", abbreviate(text, 200))
	}
	return candidate, nil
}
