package classifier

import (
	"net/http"

	"github.com/MimeLyc/subtitle-adskip/internal/config"
	"github.com/MimeLyc/subtitle-adskip/internal/errs"
)

// Select applies the backend precedence to cfg: the external workflow when
// enabled, else the on-device model when enabled, else the cloud provider.
// It fails when the chosen backend lacks what it needs; it never falls
// through to the next backend.
func Select(cfg config.UserConfig, onDeviceAvailable bool) (Kind, error) {
	switch {
	case cfg.UsingExternalWorkflow:
		if !cfg.WorkflowConfigured() {
			return KindWorkflow, errs.New(errs.BackendNotConfigured, "external workflow endpoint or key missing").
				WithContext("backend", KindWorkflow.String())
		}
		return KindWorkflow, nil
	case cfg.UsingBrowserModel:
		if !onDeviceAvailable {
			return KindOnDevice, errs.New(errs.NotInitialized, "no on-device language model available").
				WithContext("backend", KindOnDevice.String())
		}
		return KindOnDevice, nil
	default:
		if !cfg.CloudConfigured() {
			return KindCloud, errs.New(errs.BackendNotConfigured, "no API key provided").
				WithContext("backend", KindCloud.String())
		}
		return KindCloud, nil
	}
}

// NotificationFor returns the message key to show for a Select failure.
func NotificationFor(kind Kind, err error) string {
	if kind == KindWorkflow && errs.Is(err, errs.BackendNotConfigured) {
		return errs.MsgWorkflowNotInitialized
	}
	return errs.TypeOf(err).Notification()
}

// BackendFactory builds the backend for kind from cfg.
type BackendFactory func(kind Kind, cfg config.UserConfig) (Backend, error)

// DefaultBackendFactory builds the real backends.
func DefaultBackendFactory(client *http.Client, geminiBaseURL string, model LanguageModel, timeoutSeconds int) BackendFactory {
	return func(kind Kind, cfg config.UserConfig) (Backend, error) {
		switch kind {
		case KindWorkflow:
			return NewWorkflowBackend(client, cfg.ExternalWorkflowEndpoint, cfg.ExternalWorkflowKey), nil
		case KindOnDevice:
			return NewOnDeviceBackend(model), nil
		default:
			if cfg.CloudProvider == config.ProviderOpenAI {
				return NewOpenAIBackend(cfg.CloudBaseURL, cfg.APIKey, cfg.AIModel, timeoutSeconds)
			}
			baseURL := geminiBaseURL
			if baseURL == "" {
				baseURL = cfg.CloudBaseURL
			}
			return NewGeminiBackend(client, baseURL, cfg.APIKey, cfg.AIModel), nil
		}
	}
}
