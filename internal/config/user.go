package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MimeLyc/subtitle-adskip/internal/storage"
	"github.com/MimeLyc/subtitle-adskip/pkg/log"
)

// Cloud providers understood by the cloud backend.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// UserConfig is the user's settings, owned by the privileged context and
// written by the settings form. The host context only ever sees a read-only
// snapshot delivered once per page load.
//
// JSON names are the storage keys.
type UserConfig struct {
	APIKey                   string `json:"apiKey"`
	AIModel                  string `json:"aiModel"`
	AutoSkip                 bool   `json:"autoSkip"`
	IgnoreShortVideos        bool   `json:"ignoreVideoLessThan5Minutes"`
	UsingBrowserModel        bool   `json:"usingBrowserAIModel"`
	UsingExternalWorkflow    bool   `json:"usingDify"`
	ExternalWorkflowEndpoint string `json:"difyServiceAPI"`
	ExternalWorkflowKey      string `json:"difyApiKey"`
	CloudProvider            string `json:"cloudProvider"`
	CloudBaseURL             string `json:"cloudBaseURL"`
}

// UserConfigKeys lists the flat storage keys of UserConfig.
var UserConfigKeys = []string{
	"apiKey",
	"aiModel",
	"autoSkip",
	"ignoreVideoLessThan5Minutes",
	"usingBrowserAIModel",
	"usingDify",
	"difyServiceAPI",
	"difyApiKey",
	"cloudProvider",
	"cloudBaseURL",
}

func DefaultUserConfig() UserConfig {
	return UserConfig{
		AIModel:           "gemini-2.5-flash",
		AutoSkip:          true,
		IgnoreShortVideos: true,
		CloudProvider:     ProviderGemini,
	}
}

// WorkflowConfigured reports whether the external workflow has both an
// endpoint and a credential.
func (c UserConfig) WorkflowConfigured() bool {
	return strings.TrimSpace(c.ExternalWorkflowEndpoint) != "" && strings.TrimSpace(c.ExternalWorkflowKey) != ""
}

// CloudConfigured reports whether the cloud backend has a credential and a model.
func (c UserConfig) CloudConfigured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.AIModel) != ""
}

// Source yields the current user configuration.
type Source interface {
	UserConfig(ctx context.Context) (UserConfig, error)
}

// StoredUserConfig reads UserConfig from durable storage on every call.
type StoredUserConfig struct {
	KV storage.KV
}

func (s StoredUserConfig) UserConfig(ctx context.Context) (UserConfig, error) {
	return LoadUserConfig(ctx, s.KV)
}

// LoadUserConfig reads the flat user keys. A key that is absent, null, or of
// the wrong type keeps its default; empty strings also keep the default.
func LoadUserConfig(ctx context.Context, kv storage.KV) (UserConfig, error) {
	values, err := kv.Get(ctx, UserConfigKeys...)
	if err != nil {
		return UserConfig{}, fmt.Errorf("read user config: %w", err)
	}

	cfg := DefaultUserConfig()
	readString(values, "apiKey", &cfg.APIKey)
	readString(values, "aiModel", &cfg.AIModel)
	readBool(values, "autoSkip", &cfg.AutoSkip)
	readBool(values, "ignoreVideoLessThan5Minutes", &cfg.IgnoreShortVideos)
	readBool(values, "usingBrowserAIModel", &cfg.UsingBrowserModel)
	readBool(values, "usingDify", &cfg.UsingExternalWorkflow)
	readString(values, "difyServiceAPI", &cfg.ExternalWorkflowEndpoint)
	readString(values, "difyApiKey", &cfg.ExternalWorkflowKey)
	readString(values, "cloudProvider", &cfg.CloudProvider)
	readString(values, "cloudBaseURL", &cfg.CloudBaseURL)
	return cfg, nil
}

// SaveUserConfig writes every user key.
func SaveUserConfig(ctx context.Context, kv storage.KV, cfg UserConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return kv.Set(ctx, map[string]any{
		"apiKey":                      cfg.APIKey,
		"aiModel":                     cfg.AIModel,
		"autoSkip":                    cfg.AutoSkip,
		"ignoreVideoLessThan5Minutes": cfg.IgnoreShortVideos,
		"usingBrowserAIModel":         cfg.UsingBrowserModel,
		"usingDify":                   cfg.UsingExternalWorkflow,
		"difyServiceAPI":              cfg.ExternalWorkflowEndpoint,
		"difyApiKey":                  cfg.ExternalWorkflowKey,
		"cloudProvider":               cfg.CloudProvider,
		"cloudBaseURL":                cfg.CloudBaseURL,
	})
}

// Validate only checks values that are wrong in any combination; missing
// credentials are reported by the host when a backend is selected.
func (c UserConfig) Validate() error {
	switch c.CloudProvider {
	case "", ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported cloud provider %q", c.CloudProvider)
	}
	if c.CloudProvider == ProviderOpenAI && strings.TrimSpace(c.CloudBaseURL) == "" {
		return fmt.Errorf("cloudBaseURL is required for provider %q", ProviderOpenAI)
	}
	return nil
}

func readString(values map[string]json.RawMessage, key string, dst *string) {
	raw, ok := values[key]
	if !ok {
		return
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn("Ignoring stored %s: %v", key, err)
		return
	}
	if v != "" {
		*dst = v
	}
}

func readBool(values map[string]json.RawMessage, key string, dst *bool) {
	raw, ok := values[key]
	if !ok {
		return
	}
	var v *bool
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn("Ignoring stored %s: %v", key, err)
		return
	}
	if v != nil {
		*dst = *v
	}
}
