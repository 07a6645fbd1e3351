/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metaagent

import (
	"time"

	"chainguard.dev/pragent/agents/tokens"
	"chainguard.dev/pragent/settings"
)

// Config holds the credentials and knobs for every model provider.
type Config struct {
	OpenAIKey           string
	OpenAIOrg           string
	OpenAIBase          string
	OpenAIAPIType       string
	OpenAIAPIVersion    string
	Deployment          string
	FallbackDeployments []string

	AnthropicKey string

	GeminiAPIKey   string
	VertexProject  string
	VertexLocation string

	LangchainBase string
	LangchainKey  string

	Temperature     float64
	ReasoningEffort string
	// Timeout bounds a single model call, retries included.
	Timeout time.Duration
	Limits  tokens.Limits
	// EstimateFactor inflates token estimates for models with unknown tokenizers.
	EstimateFactor float64
	// AccurateTokenCount sizes whole files with model-aware counts.
	AccurateTokenCount bool
}

// ConfigFromStore reads the provider sections of s.
func ConfigFromStore(s *settings.Store) Config {
	return Config{
		OpenAIKey:           s.String("openai.key"),
		OpenAIOrg:           s.String("openai.org"),
		OpenAIBase:          s.String("openai.api_base"),
		OpenAIAPIType:       s.String("openai.api_type"),
		OpenAIAPIVersion:    s.String("openai.api_version"),
		Deployment:          s.String("openai.deployment_id"),
		FallbackDeployments: s.Strings("openai.fallback_deployments"),
		AnthropicKey:        s.String("anthropic.key"),
		GeminiAPIKey:        s.String("google_ai_studio.gemini_api_key"),
		VertexProject:       s.String("vertexai.vertex_project"),
		VertexLocation:      s.String("vertexai.vertex_location"),
		LangchainBase:       s.String("langchain.api_base"),
		LangchainKey:        s.String("langchain.key"),
		Temperature:         s.Float("config.temperature", 0.2),
		ReasoningEffort:     s.String("config.reasoning_effort"),
		Timeout:             time.Duration(s.Int("config.ai_timeout", 120)) * time.Second,
		Limits: tokens.Limits{
			CustomModelMaxTokens: s.Int("config.custom_model_max_tokens", -1),
			MaxModelTokens:       s.Int("config.max_model_tokens", 0),
		},
		EstimateFactor:     s.Float("config.model_token_count_estimate_factor", 0.3),
		AccurateTokenCount: s.Bool("config.accurate_token_count"),
	}
}
