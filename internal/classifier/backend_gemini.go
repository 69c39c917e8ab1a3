package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

// DefaultGeminiBaseURL is the Generative Language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend calls models/{model}:generateContent with a JSON response
// schema and reads the text of the first candidate.
type GeminiBackend struct {
	http    *resty.Client
	baseURL string
	apiKey  string
	model   string
}

func NewGeminiBackend(client *http.Client, baseURL, apiKey, model string) *GeminiBackend {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &GeminiBackend{
		http:    newRestyClient(client),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

func (b *GeminiBackend) Kind() Kind { return KindCloud }

func (b *GeminiBackend) Classify(ctx context.Context, req Request) (json.RawMessage, error) {
	system, prompt := BuildPrompt(req)

	body, err := b.requestBody(prompt, rangeSchema)
	if err != nil {
		return nil, err
	}
	if body, err = sjson.Set(body, "systemInstruction.parts.0.text", system); err != nil {
		return nil, errs.Wrap(err, errs.Parse, "build gemini request")
	}

	text, err := b.generate(ctx, body)
	if err != nil {
		return nil, err
	}
	candidate, ok := extractJSON(text)
	if !ok {
		return nil, errs.New(errs.InvalidResult, "gemini response is not JSON").WithContext("text", abbreviate(text, 200))
	}
	return candidate, nil
}

// Probe sends a minimal prompt expecting a boolean.
func (b *GeminiBackend) Probe(ctx context.Context) error {
	body, err := b.requestBody("Hi", json.RawMessage(`{"type":"boolean"}`))
	if err != nil {
		return err
	}
	_, err = b.generate(ctx, body)
	return err
}

func (b *GeminiBackend) requestBody(prompt string, schema json.RawMessage) (string, error) {
	body, err := sjson.Set(`{}`, "contents.0.parts.0.text", prompt)
	if err == nil {
		body, err = sjson.Set(body, "generationConfig.responseMimeType", "application/json")
	}
	if err == nil {
		body, err = sjson.SetRaw(body, "generationConfig.responseJsonSchema", string(schema))
	}
	if err != nil {
		return "", errs.Wrap(err, errs.Parse, "build gemini request")
	}
	return body, nil
}

func (b *GeminiBackend) generate(ctx context.Context, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", b.baseURL, url.PathEscape(b.model))

	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", b.apiKey).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return "", errs.Wrap(err, errs.BackendUnreachable, "gemini request failed")
	}
	if resp.IsError() {
		msg := gjson.GetBytes(resp.Body(), "error.message").String()
		if msg == "" {
			msg = abbreviate(resp.String(), 200)
		}
		return "", errs.Newf(errs.BackendUnreachable, "gemini: %s: %s", resp.Status(), msg)
	}

	text := gjson.GetBytes(resp.Body(), "candidates.0.content.parts.0.text")
	if !text.Exists() {
		reason := gjson.GetBytes(resp.Body(), "promptFeedback.blockReason").String()
		return "", errs.New(errs.InvalidResult, "gemini response has no candidate text").WithContext("blockReason", reason)
	}
	return text.String(), nil
}

func newRestyClient(client *http.Client) *resty.Client {
	if client == nil {
		return resty.New()
	}
	return resty.NewWithClient(client)
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
