/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package settings

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrForbiddenArg is returned when a command argument tries to override a protected setting.
var ErrForbiddenArg = errors.New("argument is forbidden, use a configuration file instead")

// forbiddenArgWords are fragments of setting names that may never be set from a comment.
var forbiddenArgWords = []string{
	"enable_auto_update",
	"base_url",
	"api_base",
	"api_type",
	"api_version",
	"app_name",
	"app_id",
	"secret_provider",
	"git_provider",
	"skip_keys",
	"openai.key",
	"anthropic.key",
	"gemini_api_key",
	"analytics",
	"webhook_secret",
	"shared_secret",
	"bearer_token",
	"personal_access_token",
	"user_token",
	"private_key",
	"override_deployment_type",
	"deployment_id",
	"gitlab.url",
	"gitea.url",
	"langchain.",
}

// ValidateArgs rejects arguments that override protected settings.
func ValidateArgs(args []string) error {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		word := strings.ToLower(strings.TrimLeft(arg, "-"))
		word, _, _ = strings.Cut(word, "=")
		word = strings.ReplaceAll(word, "__", ".")
		for _, forbidden := range forbiddenArgWords {
			if strings.Contains(word, forbidden) {
				return fmt.Errorf("%w: %s", ErrForbiddenArg, forbidden)
			}
		}
	}
	return nil
}

// ApplyArgs applies "--section.key=value" and "--key=value" overrides and returns the
// remaining arguments with their leading dashes removed. Values are parsed as YAML
// scalars or lists.
func (s *Store) ApplyArgs(args []string) []string {
	var rest []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if !strings.HasPrefix(arg, "--") {
			rest = append(rest, arg)
			continue
		}
		arg = strings.TrimSpace(strings.TrimLeft(arg, "-"))
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			rest = append(rest, arg)
			continue
		}
		if !strings.Contains(key, ".") && s.Table(key) != nil {
			// never replace a whole section from a comment
			rest = append(rest, arg)
			continue
		}
		s.Set(key, parseArgValue(strings.TrimSpace(value)))
	}
	return rest
}

func parseArgValue(value string) any {
	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil || v == nil {
		return value
	}
	switch t := v.(type) {
	case int:
		return int64(t)
	case map[string]any:
		// a value like "a: b" is text, not a table
		return value
	}
	return v
}

// languageInstruction is appended to extra_instructions when a response language is set.
const languageInstruction = "Your response MUST be written in the language corresponding to locale code: '%s'. This is crucial."

// ApplyResponseLanguage appends the language instruction to every section that has
// an extra_instructions option. Applying it twice has no further effect.
func (s *Store) ApplyResponseLanguage() {
	lang := s.String("config.response_language")
	if lang == "" || strings.EqualFold(lang, "en-us") {
		return
	}
	instruction := fmt.Sprintf(languageInstruction, lang)
	for _, section := range s.Sections() {
		key := section + ".extra_instructions"
		current, ok := s.Get(key)
		if !ok {
			continue
		}
		text, _ := current.(string)
		if strings.Contains(text, instruction) {
			continue
		}
		if text != "" {
			s.Set(key, text+"\n======\n\nIn addition, "+instruction)
		} else {
			s.Set(key, instruction)
		}
	}
}

// ModelKind selects which configured model a call uses.
type ModelKind int

const (
	ModelRegular ModelKind = iota
	ModelWeak
	ModelReasoning
)

// claudeAlias is the shorthand accepted in config.model.
const claudeAlias = "claude-sonnet"

// Model returns the model name for kind, falling back to config.model.
func (s *Store) Model(kind ModelKind) string {
	switch kind {
	case ModelWeak:
		if m := s.String("config.model_weak"); m != "" {
			return m
		}
	case ModelReasoning:
		if m := s.String("config.model_reasoning"); m != "" {
			return m
		}
	}
	return s.String("config.model")
}

// Models returns the model for kind followed by the fallback models.
func (s *Store) Models(kind ModelKind) []string {
	return append([]string{s.Model(kind)}, s.Strings("config.fallback_models")...)
}

// ExpandModelAlias replaces the "claude-sonnet" shorthand with a concrete model
// for the regular, weak and fallback models.
func (s *Store) ExpandModelAlias(concrete string) {
	if !strings.EqualFold(s.String("config.model"), claudeAlias) {
		return
	}
	s.Set("config.model", concrete)
	s.Set("config.model_weak", concrete)
	s.Set("config.fallback_models", []any{concrete})
}
