package dto

import (
	"github.com/noah-isme/gema-scoring-engine/internal/scoring"
	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

// ScoreRequest is the payload of both scoring endpoints.
type ScoreRequest struct {
	AnswerID   string        `json:"answer_id,omitempty" validate:"omitempty,max=128"`
	AnswerText string        `json:"answer_text" validate:"max=20000"`
	Question   QuestionInput `json:"question"`
	Provider   string        `json:"provider,omitempty" validate:"omitempty,oneof=lmstudio ollama gemini azure_openai openai"`
	SkipCache  bool          `json:"skip_cache,omitempty"`
}

// QuestionInput carries the question metadata of a scoring request.
type QuestionInput struct {
	QuestionText     string   `json:"question_text" validate:"required"`
	BackgroundText   string   `json:"background_text,omitempty"`
	QuestionNumber   string   `json:"question_number,omitempty" validate:"omitempty,max=32"`
	SubQuestions     []string `json:"sub_questions,omitempty" validate:"omitempty,dive,required"`
	ModelAnswer      string   `json:"model_answer,omitempty"`
	Keywords         []string `json:"keywords,omitempty" validate:"omitempty,dive,required"`
	GradingIntention string   `json:"grading_intention,omitempty"`
	MaxChars         int      `json:"max_chars" validate:"gte=0"`
	Points           float64  `json:"points" validate:"gt=0"`
	ScoringAspects   []string `json:"scoring_aspects,omitempty" validate:"omitempty,dive,required"`
}

// ToQuestionData converts the request shape into the engine input.
func (q QuestionInput) ToQuestionData() scoring.QuestionData {
	return scoring.QuestionData{
		QuestionText:     q.QuestionText,
		BackgroundText:   q.BackgroundText,
		QuestionNumber:   q.QuestionNumber,
		SubQuestions:     q.SubQuestions,
		ModelAnswer:      q.ModelAnswer,
		Keywords:         q.Keywords,
		GradingIntention: q.GradingIntention,
		MaxChars:         q.MaxChars,
		Points:           q.Points,
		ScoringAspects:   q.ScoringAspects,
	}
}

// ScoreResponse wraps an integrated result with request metadata.
type ScoreResponse struct {
	RequestID        string                   `json:"request_id"`
	AnswerID         string                   `json:"answer_id,omitempty"`
	Result           scoring.IntegratedResult `json:"result"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
	CacheHit         bool                     `json:"cache_hit"`
}

// LLMScoreResponse wraps a rubric-only evaluation.
type LLMScoreResponse struct {
	RequestID        string            `json:"request_id"`
	AnswerID         string            `json:"answer_id,omitempty"`
	Result           llm.ScoringResult `json:"result"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}

// ProvidersResponse lists configured providers with their health.
type ProvidersResponse struct {
	Default   llm.ProviderType          `json:"default,omitempty"`
	Providers []llm.ProviderInfo        `json:"providers"`
	Health    map[llm.ProviderType]bool `json:"health"`
	Supported []llm.ProviderType        `json:"supported"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status       string                    `json:"status"`
	Service      string                    `json:"service"`
	Environment  string                    `json:"environment"`
	Timestamp    string                    `json:"timestamp"`
	LLMAvailable bool                      `json:"llm_available"`
	Providers    map[llm.ProviderType]bool `json:"providers"`
	Cache        string                    `json:"cache"`
}

// ServiceInfoResponse is returned by the root endpoint.
type ServiceInfoResponse struct {
	Service      string             `json:"service"`
	Version      string             `json:"version"`
	LLMAvailable bool               `json:"llm_available"`
	Providers    []llm.ProviderType `json:"providers"`
	Methods      []string           `json:"methods"`
}
