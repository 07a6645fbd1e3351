/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metaagent

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/pragent/agents/executor"
	"chainguard.dev/pragent/agents/executor/azureexecutor"
	"chainguard.dev/pragent/agents/executor/claudeexecutor"
	"chainguard.dev/pragent/agents/executor/googleexecutor"
	"chainguard.dev/pragent/agents/executor/langchainexecutor"
	"chainguard.dev/pragent/agents/executor/openaiexecutor"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// build creates the executor for p from cfg.
func build(ctx context.Context, p Provider, cfg Config) (executor.Interface, error) {
	switch p {
	case ProviderClaude:
		if cfg.AnthropicKey == "" {
			return nil, errors.New("anthropic.key is not set")
		}
		return claudeexecutor.New(anthropic.NewClient(anthropicoption.WithAPIKey(cfg.AnthropicKey)))

	case ProviderClaudeVertex:
		if cfg.VertexProject == "" || cfg.VertexLocation == "" {
			return nil, errors.New("vertexai.vertex_project and vertexai.vertex_location must be set")
		}
		return claudeexecutor.New(anthropic.NewClient(vertex.WithGoogleAuth(ctx, cfg.VertexLocation, cfg.VertexProject)))

	case ProviderGoogle:
		cc := &genai.ClientConfig{}
		switch {
		case cfg.GeminiAPIKey != "":
			cc.Backend = genai.BackendGeminiAPI
			cc.APIKey = cfg.GeminiAPIKey
		case cfg.VertexProject != "":
			cc.Backend = genai.BackendVertexAI
			cc.Project = cfg.VertexProject
			cc.Location = cfg.VertexLocation
		default:
			return nil, errors.New("google_ai_studio.gemini_api_key or vertexai.vertex_project must be set")
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("creating genai client: %w", err)
		}
		return googleexecutor.New(client, googleexecutor.WithResourceLabels(nil))

	case ProviderAzure:
		if cfg.OpenAIKey == "" || cfg.OpenAIBase == "" {
			return nil, errors.New("openai.key and openai.api_base must be set for Azure")
		}
		return azureexecutor.New(azureexecutor.Config(cfg.OpenAIKey, cfg.OpenAIBase, cfg.OpenAIAPIVersion), cfg.Deployment)

	case ProviderLangchain:
		return langchainexecutor.NewOpenAICompatible(cfg.LangchainBase, cfg.LangchainKey)

	case ProviderOllama:
		return langchainexecutor.NewOllama(cfg.LangchainBase)

	default:
		if cfg.OpenAIKey == "" {
			return nil, errors.New("openai.key is not set")
		}
		opts := []openaioption.RequestOption{openaioption.WithAPIKey(cfg.OpenAIKey)}
		if cfg.OpenAIBase != "" {
			opts = append(opts, openaioption.WithBaseURL(cfg.OpenAIBase))
		}
		if cfg.OpenAIOrg != "" {
			opts = append(opts, openaioption.WithOrganization(cfg.OpenAIOrg))
		}
		var eopts []openaiexecutor.Option
		if cfg.ReasoningEffort != "" {
			eopts = append(eopts, openaiexecutor.WithReasoningEffort(cfg.ReasoningEffort))
		}
		return openaiexecutor.New(openai.NewClient(opts...), eopts...)
	}
}
