package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Method names double as the keys of IntegratedResult.Details.
const (
	MethodRuleBased     = "rule_based"
	MethodSemantic      = "semantic"
	MethodComprehensive = "comprehensive"
)

const (
	// DefaultMaxChars is the answer length limit assumed when a question has none.
	DefaultMaxChars = 40

	// IntegratedModelName tags a normal integrated result.
	IntegratedModelName = "integrated_scoring_engine"
	// EmergencyModelName tags the result returned when integration itself failed.
	EmergencyModelName = "emergency_fallback"
)

var (
	// ErrInvalidQuestion reports question metadata the integrator cannot score against.
	ErrInvalidQuestion = errors.New("invalid question data")
	// ErrMethodTimeout reports a scoring method that did not settle within its deadline.
	ErrMethodTimeout = errors.New("scoring method timed out")
	// ErrInvalidMethodResult reports a method result that breaks the score range contract.
	ErrInvalidMethodResult = errors.New("invalid method result")
)

// QuestionData is the question-side input of one scoring request.
type QuestionData struct {
	QuestionText     string   `json:"question_text"`
	BackgroundText   string   `json:"background_text,omitempty"`
	QuestionNumber   string   `json:"question_number,omitempty"`
	SubQuestions     []string `json:"sub_questions,omitempty"`
	ModelAnswer      string   `json:"model_answer,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	GradingIntention string   `json:"grading_intention,omitempty"`
	MaxChars         int      `json:"max_chars" validate:"gte=0"`
	Points           float64  `json:"points" validate:"gt=0"`
	ScoringAspects   []string `json:"scoring_aspects,omitempty"`
}

// CharLimit returns MaxChars, or DefaultMaxChars when unset.
func (q QuestionData) CharLimit() int {
	if q.MaxChars <= 0 {
		return DefaultMaxChars
	}
	return q.MaxChars
}

// MethodResult is the normalized output of one scoring method.
type MethodResult struct {
	Score      float64                `json:"score"`
	MaxScore   float64                `json:"max_score"`
	Percentage float64                `json:"percentage"`
	Confidence float64                `json:"confidence"`
	Details    map[string]interface{} `json:"details"`
	Reasons    []string               `json:"reasons"`
	TokensUsed int                    `json:"tokens_used,omitempty"`
}

// Method scores an answer on one axis.
type Method interface {
	Name() string
	Score(ctx context.Context, answer string, question QuestionData) (MethodResult, error)
}

// IntegratedResult is the combined advisory score for one answer.
type IntegratedResult struct {
	TotalScore         float64                `json:"total_score"`
	MaxScore           float64                `json:"max_score"`
	Percentage         float64                `json:"percentage"`
	Confidence         float64                `json:"confidence"`
	RuleBasedScore     *float64               `json:"rule_based_score"`
	SemanticScore      *float64               `json:"semantic_score"`
	ComprehensiveScore *float64               `json:"comprehensive_score"`
	Details            map[string]interface{} `json:"details"`
	Reasons            []string               `json:"reasons"`
	Suggestions        []string               `json:"suggestions"`
	ModelName          string                 `json:"model_name"`
	Temperature        *float64               `json:"temperature"`
	TokensUsed         int                    `json:"tokens_used"`
	FallbackMethods    []string               `json:"fallback_methods,omitempty"`
}

// IsEmergency reports whether the result is the emergency fallback.
func (r IntegratedResult) IsEmergency() bool {
	return r.ModelName == EmergencyModelName
}

// Degraded reports whether any part of the result was substituted by a fallback.
func (r IntegratedResult) Degraded() bool {
	return r.IsEmergency() || len(r.FallbackMethods) > 0
}

// newMethodResult scales a 0..1 fraction onto the question's points.
func newMethodResult(fraction, points, confidence float64, details map[string]interface{}, reasons []string) MethodResult {
	fraction = clampUnit(fraction)
	return MethodResult{
		Score:      fraction * points,
		MaxScore:   points,
		Percentage: fraction * 100,
		Confidence: confidence,
		Details:    details,
		Reasons:    reasons,
	}
}

// failedMethodResult is the zero-score result a heuristic method returns when it breaks.
func failedMethodResult(points float64, cause interface{}, reason string) MethodResult {
	return MethodResult{
		Score:      0,
		MaxScore:   points,
		Percentage: 0,
		Confidence: 0,
		Details:    map[string]interface{}{"error": fmt.Sprint(cause)},
		Reasons:    []string{reason},
	}
}

// percentageTolerance absorbs rounding in results that report a rounded percentage.
const percentageTolerance = 0.01

func (r MethodResult) check() error {
	switch {
	case math.IsNaN(r.Score) || math.IsInf(r.Score, 0):
		return fmt.Errorf("%w: score is not finite", ErrInvalidMethodResult)
	case r.MaxScore <= 0 || math.IsNaN(r.MaxScore) || math.IsInf(r.MaxScore, 0):
		return fmt.Errorf("%w: max score %v", ErrInvalidMethodResult, r.MaxScore)
	case r.Score < 0 || r.Score > r.MaxScore+1e-9:
		return fmt.Errorf("%w: score %v outside 0..%v", ErrInvalidMethodResult, r.Score, r.MaxScore)
	case math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside 0..1", ErrInvalidMethodResult, r.Confidence)
	case math.IsNaN(r.Percentage) || math.Abs(r.Percentage-r.Score/r.MaxScore*100) > percentageTolerance:
		return fmt.Errorf("%w: percentage %v does not match score %v of %v",
			ErrInvalidMethodResult, r.Percentage, r.Score, r.MaxScore)
	}
	return nil
}

func clampUnit(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
