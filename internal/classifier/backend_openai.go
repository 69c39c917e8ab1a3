package classifier

import (
	"context"
	"encoding/json"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
	"github.com/MimeLyc/subtitle-adskip/internal/llm"
)

// OpenAIBackend uses any OpenAI-compatible chat completions API.
type OpenAIBackend struct {
	client *llm.Client
}

func NewOpenAIBackend(baseURL, apiKey, model string, timeoutSeconds int) (*OpenAIBackend, error) {
	client, err := llm.NewClient(&llm.Config{
		APIKey:      apiKey,
		APIURL:      baseURL,
		Model:       model,
		Temperature: 0,
		Timeout:     timeoutSeconds,
		AppName:     "subtitle-adskip",
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.BackendNotConfigured, "openai backend")
	}
	return &OpenAIBackend{client: client}, nil
}

func (b *OpenAIBackend) Kind() Kind { return KindCloud }

func (b *OpenAIBackend) Classify(ctx context.Context, req Request) (json.RawMessage, error) {
	system, prompt := BuildPrompt(req)
	opts := llm.NewChatCompletionOptions().
		WithSystemPrompt(system).
		WithTemperature(0).
		WithJSONSchema("ad_time_range", rangeSchema)

	content, err := b.client.SimpleChat(ctx, prompt, opts)
	if err != nil {
		return nil, errs.Wrap(err, errs.BackendUnreachable, "openai request failed")
	}
	candidate, ok := extractJSON(content)
	if !ok {
		return nil, errs.New(errs.InvalidResult, "openai response is not JSON").WithContext("text", abbreviate(content, 200))
	}
	return candidate, nil
}

func (b *OpenAIBackend) Probe(ctx context.Context) error {
	if err := b.client.Ping(ctx); err != nil {
		return errs.Wrap(err, errs.BackendUnreachable, "openai probe failed")
	}
	return nil
}
