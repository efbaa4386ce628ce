package llm

import (
	"context"
	"time"
)

// ProviderType tags a language model backend.
type ProviderType string

const (
	// ProviderLMStudio is a local LM Studio server speaking the OpenAI chat protocol.
	ProviderLMStudio ProviderType = "lmstudio"
	// ProviderOllama is a local Ollama server.
	ProviderOllama ProviderType = "ollama"
	// ProviderGemini is the hosted Google Gemini API.
	ProviderGemini ProviderType = "gemini"
	// ProviderAzureOpenAI is a hosted Azure OpenAI deployment.
	ProviderAzureOpenAI ProviderType = "azure_openai"
	// ProviderOpenAI is the hosted OpenAI API.
	ProviderOpenAI ProviderType = "openai"
)

// String returns the tag value.
func (p ProviderType) String() string { return string(p) }

// DefaultMaxScore is the point value of a question when none is supplied.
const DefaultMaxScore = 25.0

// DefaultScoringAspects are the rubric dimensions used when a question does not define its own.
var DefaultScoringAspects = []string{
	"Accuracy of problem understanding",
	"Logical structure",
	"Concreteness and practicality",
	"Application of PM knowledge",
	"Written expression",
}

// ScoringCriteria is everything the rubric prompt needs for one answer.
type ScoringCriteria struct {
	QuestionText     string   `json:"question_text"`
	BackgroundText   string   `json:"background_text,omitempty"`
	QuestionNumber   string   `json:"question_number,omitempty"`
	SubQuestions     []string `json:"sub_questions,omitempty"`
	AnswerText       string   `json:"answer_text"`
	MaxScore         float64  `json:"max_score"`
	ScoringAspects   []string `json:"scoring_aspects"`
	ModelAnswer      string   `json:"model_answer,omitempty"`
	GradingIntention string   `json:"grading_intention,omitempty"`
}

// WithDefaults fills the max score and aspect list when they are missing.
func (c ScoringCriteria) WithDefaults() ScoringCriteria {
	if c.MaxScore <= 0 {
		c.MaxScore = DefaultMaxScore
	}
	if len(c.ScoringAspects) == 0 {
		c.ScoringAspects = append([]string(nil), DefaultScoringAspects...)
	}
	return c
}

// AspectMaxScore is the ceiling of a single aspect sub-score.
func (c ScoringCriteria) AspectMaxScore() float64 {
	c = c.WithDefaults()
	return c.MaxScore / float64(len(c.ScoringAspects))
}

// AspectDetail is the model's justification for one rubric aspect.
type AspectDetail struct {
	Score           float64 `json:"score"`
	Reasoning       string  `json:"reasoning"`
	Evidence        string  `json:"evidence"`
	DeductionPoints *string `json:"deduction_points,omitempty"`
}

// DetailedAnalysis groups the qualitative findings of the model.
type DetailedAnalysis struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	MissingElements []string `json:"missing_elements"`
	SpecificIssues  []string `json:"specific_issues"`
}

// ParseQuality records which parser stage produced a ScoringResult.
type ParseQuality string

const (
	// ParseStructured means the model output was a well-formed scoring object.
	ParseStructured ParseQuality = "structured"
	// ParseSalvaged means the scores were recovered from free text.
	ParseSalvaged ParseQuality = "salvaged"
)

// Usage reports token accounting for one generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ScoringResult is the rubric evaluation of one answer.
//
// TotalScore, AspectScores, DetailedFeedback, Confidence and Reasoning are always populated so
// that older consumers keep working; the remaining fields are set only when the model sent them.
type ScoringResult struct {
	TotalScore       float64            `json:"total_score"`
	AspectScores     map[string]float64 `json:"aspect_scores"`
	DetailedFeedback string             `json:"detailed_feedback"`
	Confidence       float64            `json:"confidence"`
	Reasoning        string             `json:"reasoning"`

	DetailedAnalysis       *DetailedAnalysis       `json:"detailed_analysis,omitempty"`
	AspectReasoning        map[string]AspectDetail `json:"aspect_reasoning,omitempty"`
	ImprovementSuggestions []string                `json:"improvement_suggestions,omitempty"`
	ConfidenceReasoning    *string                 `json:"confidence_reasoning,omitempty"`
	OverallReasoning       *string                 `json:"overall_reasoning,omitempty"`
	AttentionPoints        []string                `json:"attention_points,omitempty"`

	Quality  ParseQuality `json:"parse_quality"`
	Provider ProviderType `json:"provider,omitempty"`
	Model    string       `json:"model,omitempty"`
	Usage    Usage        `json:"usage"`
}

// GenerateOptions overrides per-call generation parameters. Zero values keep provider defaults.
type GenerateOptions struct {
	Temperature *float32
	MaxTokens   int
}

// Response is a single text completion.
type Response struct {
	Content  string                 `json:"content"`
	Provider ProviderType           `json:"provider"`
	Model    string                 `json:"model"`
	Usage    Usage                  `json:"usage"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Provider is the capability set every backend exposes.
type Provider interface {
	Type() ProviderType
	GenerateResponse(ctx context.Context, prompt string, opts GenerateOptions) (Response, error)
	ScoreAnswer(ctx context.Context, criteria ScoringCriteria) (ScoringResult, error)
	HealthCheck(ctx context.Context) bool
}

// ModelInfo is implemented by providers that can describe their configuration.
type ModelInfo interface {
	Info() ProviderInfo
}

// ProviderInfo describes a configured provider.
type ProviderInfo struct {
	Provider           ProviderType   `json:"provider"`
	Model              string         `json:"model"`
	BaseURL            string         `json:"base_url,omitempty"`
	MaxTokens          int            `json:"max_tokens"`
	Temperature        float32        `json:"temperature"`
	Default            bool           `json:"default"`
	AvailableProviders []ProviderType `json:"available_providers"`
}

// ProviderConfig configures one backend instance.
type ProviderConfig struct {
	Type        ProviderType
	BaseURL     string
	APIKey      string
	Model       string
	Deployment  string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32

	// ScoringTemperature and ScoringMaxTokens apply to ScoreAnswer calls.
	ScoringTemperature float32
	ScoringMaxTokens   int

	// JSONMode asks the backend to constrain output to a JSON object when it supports that.
	JSONMode bool
}

func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.ScoringTemperature == 0 {
		c.ScoringTemperature = 0.1
	}
	if c.ScoringMaxTokens <= 0 {
		c.ScoringMaxTokens = 1500
	}
	return c
}
