package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

var sampleRequest = Request{
	VideoID:     "BV1",
	Subtitles:   "[0-2.5]:大家好;[2.5-10]:本期视频由某某赞助",
	Language:    language.SimplifiedChinese,
	Title:       "测评",
	Description: "",
}

func TestGeminiBackend_Classify(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "gk", r.Header.Get("x-goog-api-key"))
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"startTime\": 2.5, \"endTime\": 10}"}]}}]}`))
	}))
	defer srv.Close()

	b := NewGeminiBackend(srv.Client(), srv.URL, "gk", "gemini-2.5-flash")
	candidate, err := b.Classify(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"startTime":2.5,"endTime":10}`, string(candidate))

	assert.Contains(t, gjson.GetBytes(body, "contents.0.parts.0.text").String(), sampleRequest.Subtitles)
	assert.Contains(t, gjson.GetBytes(body, "contents.0.parts.0.text").String(), "视频标题如下")
	assert.NotContains(t, gjson.GetBytes(body, "contents.0.parts.0.text").String(), "视频描述如下")
	assert.Equal(t, "application/json", gjson.GetBytes(body, "generationConfig.responseMimeType").String())
	assert.Equal(t, "number", gjson.GetBytes(body, "generationConfig.responseJsonSchema.properties.startTime.type").String())
}

func TestGeminiBackend_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "blocked") {
			_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := NewGeminiBackend(srv.Client(), srv.URL, "bad", "m").Classify(context.Background(), sampleRequest)
	assert.True(t, errs.Is(err, errs.BackendUnreachable))
	assert.Contains(t, err.Error(), "API key not valid")

	err = NewGeminiBackend(srv.Client(), srv.URL, "bad", "m").Probe(context.Background())
	assert.True(t, errs.Is(err, errs.BackendUnreachable))

	_, err = NewGeminiBackend(srv.Client(), srv.URL, "k", "blocked").Classify(context.Background(), sampleRequest)
	assert.True(t, errs.Is(err, errs.InvalidResult))
}

func TestGeminiBackend_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "Hi", gjson.GetBytes(body, "contents.0.parts.0.text").String())
		assert.Equal(t, "boolean", gjson.GetBytes(body, "generationConfig.responseJsonSchema.type").String())
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"true"}]}}]}`))
	}))
	defer srv.Close()

	assert.NoError(t, NewGeminiBackend(srv.Client(), srv.URL, "k", "m").Probe(context.Background()))
}

func TestWorkflowBackend_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer wf-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "blocking", req["response_mode"])
		assert.Equal(t, "user_ad-marker", req["user"])
		inputs, _ := req["inputs"].(map[string]any)
		assert.Equal(t, sampleRequest.Subtitles, inputs["subStr"])
		assert.Equal(t, "测评", inputs["videoTitle"])

		switch r.URL.Path {
		case "/object":
			_, _ = w.Write([]byte(`{"data":{"outputs":{"structured_output":{"startTime":"2.5","endTime":10}}}}`))
		case "/string":
			_, _ = w.Write([]byte(`{"data":{"outputs":{"structured_output":"{\"startTime\":1,\"endTime\":3}"}}}`))
		case "/null":
			_, _ = w.Write([]byte(`{"data":{"status":"succeeded","outputs":{"structured_output":null}}}`))
		case "/missing":
			_, _ = w.Write([]byte(`{"data":{"outputs":{}}}`))
		case "/failed":
			_, _ = w.Write([]byte(`{"data":{"status":"failed","error":"LLM quota exceeded","outputs":null}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	candidate, err := NewWorkflowBackend(srv.Client(), srv.URL+"/object", "wf-key").Classify(ctx, sampleRequest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"startTime":"2.5","endTime":10}`, string(candidate))

	candidate, err = NewWorkflowBackend(srv.Client(), srv.URL+"/string", "wf-key").Classify(ctx, sampleRequest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"startTime":1,"endTime":3}`, string(candidate))

	candidate, err = NewWorkflowBackend(srv.Client(), srv.URL+"/null", "wf-key").Classify(ctx, sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "null", string(candidate), "an explicit null means no ad")

	_, err = NewWorkflowBackend(srv.Client(), srv.URL+"/missing", "wf-key").Classify(ctx, sampleRequest)
	assert.True(t, errs.Is(err, errs.InvalidResult))

	_, err = NewWorkflowBackend(srv.Client(), srv.URL+"/failed", "wf-key").Classify(ctx, sampleRequest)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidResult))
	assert.Contains(t, err.Error(), "LLM quota exceeded")

	_, err = NewWorkflowBackend(srv.Client(), srv.URL+"/fail", "wf-key").Classify(ctx, sampleRequest)
	assert.True(t, errs.Is(err, errs.BackendUnreachable))
}

func TestOpenAIBackend_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			_, _ = w.Write([]byte(`{"data":[]}`))
		case "/v1/chat/completions":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "json_schema", gjson.GetBytes(body, "response_format.type").String())
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + "```json\\n{\\\"startTime\\\":4,\\\"endTime\\\":8}\\n```" + `"}}]}`))
		}
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(srv.URL+"/v1", "sk", "gpt-test", 10)
	require.NoError(t, err)
	require.NoError(t, b.Probe(context.Background()))

	candidate, err := b.Classify(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"startTime":4,"endTime":8}`, string(candidate))

	_, err = NewOpenAIBackend("", "sk", "gpt-test", 10)
	assert.True(t, errs.Is(err, errs.BackendNotConfigured))
}

type scriptedModel struct {
	reply string
	err   error
}

func (m scriptedModel) Prompt(context.Context, string, string) (string, error) {
	return m.reply, m.err
}

func TestOnDeviceBackend(t *testing.T) {
	_, err := NewOnDeviceBackend(nil).Classify(context.Background(), sampleRequest)
	assert.True(t, errs.Is(err, errs.NotInitialized))

	candidate, err := NewOnDeviceBackend(scriptedModel{reply: `The ad is {"startTime": 30, "endTime": 45}.`}).
		Classify(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"startTime":30,"endTime":45}`, string(candidate))

	_, err = NewOnDeviceBackend(scriptedModel{err: errors.New("session closed")}).Classify(context.Background(), sampleRequest)
	assert.True(t, errs.Is(err, errs.BackendUnreachable))

	_, err = NewOnDeviceBackend(scriptedModel{reply: "no idea"}).Classify(context.Background(), sampleRequest)
	assert.True(t, errs.Is(err, errs.InvalidResult))
}

func TestSelect_Precedence(t *testing.T) {
	cfg := config.DefaultUserConfig()
	cfg.APIKey = "k"

	kind, err := Select(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, KindCloud, kind)

	cfg.UsingBrowserModel = true
	kind, err = Select(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, KindOnDevice, kind)

	cfg.UsingExternalWorkflow = true
	cfg.ExternalWorkflowEndpoint = "https://wf"
	cfg.ExternalWorkflowKey = "k"
	kind, err = Select(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, KindWorkflow, kind)
}

func TestBuildPrompt_Language(t *testing.T) {
	system, user := BuildPrompt(Request{Subtitles: "[1-2]:hello", Language: language.English, Description: "desc"})
	assert.Equal(t, systemPromptEN, system)
	assert.True(t, strings.HasPrefix(user, instructionEN))
	assert.Contains(t, user, "The video description is:\ndesc")
	assert.NotContains(t, user, "The video title is:")

	system, user = BuildPrompt(Request{Subtitles: "[1-2]:你好", Language: language.Und})
	assert.Equal(t, systemPromptZH, system)
	assert.Contains(t, user, "[1-2]:你好")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"startTime":1,"endTime":2}`, `{"startTime":1,"endTime":2}`, true},
		{"```json\n{\"startTime\":1,\"endTime\":2}\n```", `{"startTime":1,"endTime":2}`, true},
		{`null`, `null`, true},
		{`Answer: {"startTime":1,"endTime":2} done`, `{"startTime":1,"endTime":2}`, true},
		{`nothing here`, ``, false},
	}
	for _, tt := range tests {
		got, ok := extractJSON(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.JSONEq(t, tt.want, string(got), tt.in)
		}
	}
}
