/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package settings

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Settings is the typed view of the options the agent reads on every request.
// Tool specific options and prompts are read from the Store directly.
type Settings struct {
	Config           Config           `toml:"config"`
	PRReviewer       PRReviewer       `toml:"pr_reviewer"`
	PRDescription    PRDescription    `toml:"pr_description"`
	PRCodeSuggestion PRCodeSuggestion `toml:"pr_code_suggestions"`
	GitHubApp        GitHubApp        `toml:"github_app"`
}

// Config mirrors the [config] section.
type Config struct {
	Model                             string   `toml:"model" validate:"required"`
	GitProvider                       string   `toml:"git_provider" validate:"oneof=github gitlab gitea local"`
	PublishOutput                     bool     `toml:"publish_output"`
	PublishOutputProgress             bool     `toml:"publish_output_progress"`
	VerbosityLevel                    int      `toml:"verbosity_level" validate:"min=0,max=2"`
	AITimeout                         int      `toml:"ai_timeout" validate:"min=1"`
	ResponseLanguage                  string   `toml:"response_language"`
	MaxDescriptionTokens              int      `toml:"max_description_tokens" validate:"min=0"`
	MaxCommitsTokens                  int      `toml:"max_commits_tokens" validate:"min=0"`
	MaxModelTokens                    int      `toml:"max_model_tokens" validate:"min=0"`
	CustomModelMaxTokens              int      `toml:"custom_model_max_tokens"`
	ModelTokenCountEstimateFactor     float64  `toml:"model_token_count_estimate_factor" validate:"min=0"`
	AccurateTokenCount                bool     `toml:"accurate_token_count"`
	PatchExtraLinesBefore             int      `toml:"patch_extra_lines_before" validate:"min=0"`
	PatchExtraLinesAfter              int      `toml:"patch_extra_lines_after" validate:"min=0"`
	AllowDynamicContext               bool     `toml:"allow_dynamic_context"`
	MaxExtraLinesBeforeDynamicContext int      `toml:"max_extra_lines_before_dynamic_context" validate:"min=0"`
	PatchExtensionSkipTypes           []string `toml:"patch_extension_skip_types"`
	LargePatchPolicy                  string   `toml:"large_patch_policy" validate:"oneof=skip clip"`
	Temperature                       float64  `toml:"temperature" validate:"min=0,max=2"`
	SecretProvider                    string   `toml:"secret_provider" validate:"omitempty,oneof=google_cloud_storage aws_s3"`
	CLIMode                           bool     `toml:"cli_mode"`
	EnableCustomLabels                bool     `toml:"enable_custom_labels"`
	IgnorePRTitle                     []string `toml:"ignore_pr_title"`
	IgnorePRTargetBranches            []string `toml:"ignore_pr_target_branches"`
	IgnorePRSourceBranches            []string `toml:"ignore_pr_source_branches"`
	IgnorePRLabels                    []string `toml:"ignore_pr_labels"`
	IgnorePRAuthors                   []string `toml:"ignore_pr_authors"`
	IgnoreRepositories                []string `toml:"ignore_repositories"`
	IsAutoCommand                     bool     `toml:"is_auto_command"`
	DisableAutoFeedback               bool     `toml:"disable_auto_feedback"`
}

// PRReviewer mirrors the [pr_reviewer] section.
type PRReviewer struct {
	RequireScoreReview            bool   `toml:"require_score_review"`
	RequireTestsReview            bool   `toml:"require_tests_review"`
	RequireEstimateEffortToReview bool   `toml:"require_estimate_effort_to_review"`
	RequireCanBeSplitReview       bool   `toml:"require_can_be_split_review"`
	RequireSecurityReview         bool   `toml:"require_security_review"`
	NumMaxFindings                int    `toml:"num_max_findings" validate:"min=1,max=20"`
	PersistentComment             bool   `toml:"persistent_comment"`
	ExtraInstructions             string `toml:"extra_instructions"`
	FinalUpdateMessage            bool   `toml:"final_update_message"`
	EnableReviewLabelsSecurity    bool   `toml:"enable_review_labels_security"`
	EnableReviewLabelsEffort      bool   `toml:"enable_review_labels_effort"`
	EnableHelpText                bool   `toml:"enable_help_text"`
}

// PRDescription mirrors the [pr_description] section.
type PRDescription struct {
	PublishLabels                         bool   `toml:"publish_labels"`
	AddOriginalUserDescription            bool   `toml:"add_original_user_description"`
	GenerateAITitle                       bool   `toml:"generate_ai_title"`
	UseBulletPoints                       bool   `toml:"use_bullet_points"`
	ExtraInstructions                     string `toml:"extra_instructions"`
	EnablePRType                          bool   `toml:"enable_pr_type"`
	FinalUpdateMessage                    bool   `toml:"final_update_message"`
	EnableHelpText                        bool   `toml:"enable_help_text"`
	PublishDescriptionAsComment           bool   `toml:"publish_description_as_comment"`
	PublishDescriptionAsCommentPersistent bool   `toml:"publish_description_as_comment_persistent"`
	EnableSemanticFilesTypes              bool   `toml:"enable_semantic_files_types"`
	IncludeGeneratedByHeader              bool   `toml:"include_generated_by_header"`
	MaxAICalls                            int    `toml:"max_ai_calls" validate:"min=1"`
}

// PRCodeSuggestion mirrors the [pr_code_suggestions] section.
type PRCodeSuggestion struct {
	CommitableCodeSuggestions  bool   `toml:"commitable_code_suggestions"`
	FocusOnlyOnProblems        bool   `toml:"focus_only_on_problems"`
	ExtraInstructions          string `toml:"extra_instructions"`
	EnableHelpText             bool   `toml:"enable_help_text"`
	PersistentComment          bool   `toml:"persistent_comment"`
	PublishOutputNoSuggestions bool   `toml:"publish_output_no_suggestions"`
	SuggestionsScoreThreshold  int    `toml:"suggestions_score_threshold" validate:"min=0,max=10"`
	NumCodeSuggestionsPerChunk int    `toml:"num_code_suggestions_per_chunk" validate:"min=1"`
	MaxNumberOfCalls           int    `toml:"max_number_of_calls" validate:"min=1"`
	ParallelCalls              bool   `toml:"parallel_calls"`
}

// GitHubApp mirrors the [github_app] section.
type GitHubApp struct {
	BotUser                         string   `toml:"bot_user"`
	HandlePRActions                 []string `toml:"handle_pr_actions"`
	PRCommands                      []string `toml:"pr_commands"`
	FeedbackOnDraftPR               bool     `toml:"feedback_on_draft_pr"`
	IgnoreBotPR                     bool     `toml:"ignore_bot_pr"`
	HandlePushTrigger               bool     `toml:"handle_push_trigger"`
	PushTriggerIgnoreBotCommits     bool     `toml:"push_trigger_ignore_bot_commits"`
	PushTriggerIgnoreMergeCommits   bool     `toml:"push_trigger_ignore_merge_commits"`
	PushTriggerWaitForInitialReview bool     `toml:"push_trigger_wait_for_initial_review"`
	PushTriggerPendingTasksBacklog  bool     `toml:"push_trigger_pending_tasks_backlog"`
	PushTriggerPendingTasksTTL      int      `toml:"push_trigger_pending_tasks_ttl" validate:"min=0"`
	PushCommands                    []string `toml:"push_commands"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings decodes and validates the typed view of the store.
func (s *Store) Settings() (*Settings, error) {
	doc, err := s.TOML()
	if err != nil {
		return nil, err
	}
	var out Settings
	if _, err := toml.Decode(doc, &out); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if err := validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}
	return &out, nil
}
