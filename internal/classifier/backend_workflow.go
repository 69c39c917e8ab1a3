package classifier

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

// workflowUser identifies this program to the workflow service.
const workflowUser = "user_ad-marker"

// WorkflowBackend posts the subtitles to an external workflow endpoint in
// blocking mode and reads data.outputs.structured_output.
type WorkflowBackend struct {
	http     *resty.Client
	endpoint string
	apiKey   string
}

func NewWorkflowBackend(client *http.Client, endpoint, apiKey string) *WorkflowBackend {
	return &WorkflowBackend{
		http:     newRestyClient(client),
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

func (b *WorkflowBackend) Kind() Kind { return KindWorkflow }

func (b *WorkflowBackend) Classify(ctx context.Context, req Request) (json.RawMessage, error) {
	body := map[string]any{
		"inputs": map[string]string{
			"subStr":           req.Subtitles,
			"videoTitle":       req.Title,
			"videoDescription": req.Description,
		},
		"response_mode": "blocking",
		"user":          workflowUser,
	}

	resp, err := b.http.R().
		SetContext(ctx).
		SetAuthToken(b.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(b.endpoint)
	if err != nil {
		return nil, errs.Wrap(err, errs.BackendUnreachable, "workflow request failed")
	}
	if resp.IsError() {
		return nil, errs.Newf(errs.BackendUnreachable, "workflow: %s: %s", resp.Status(), abbreviate(resp.String(), 200))
	}

	output := gjson.GetBytes(resp.Body(), "data.outputs.structured_output")
	switch {
	case !output.Exists():
		// a failed run reports through data.status and data.error
		reason := gjson.GetBytes(resp.Body(), "data.error").String()
		if reason == "" {
			reason = gjson.GetBytes(resp.Body(), "data.status").String()
		}
		return nil, errs.Newf(errs.InvalidResult, "workflow returned no structured output: %s", abbreviate(reason, 200))
	case output.Type == gjson.Null:
		return json.RawMessage("null"), nil
	case output.Type == gjson.String:
		// some workflows emit the object as a JSON string
		if candidate, ok := extractJSON(output.String()); ok {
			return candidate, nil
		}
		return nil, errs.New(errs.InvalidResult, "workflow output is not JSON")
	default:
		return json.RawMessage(output.Raw), nil
	}
}
