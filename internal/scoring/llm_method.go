package scoring

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

const blankAnswerConfidence = 0.9

// RubricScorer is the provider-manager capability the LLM method needs.
type RubricScorer interface {
	ScoreAnswer(ctx context.Context, criteria llm.ScoringCriteria, providerType llm.ProviderType) (llm.ScoringResult, error)
}

// LLMMethod fills the comprehensive slot with a language model rubric evaluation.
type LLMMethod struct {
	scorer   RubricScorer
	provider llm.ProviderType
	logger   zerolog.Logger
}

// NewLLMMethod adapts scorer into a Method. An empty provider selects the manager default.
func NewLLMMethod(scorer RubricScorer, provider llm.ProviderType, logger zerolog.Logger) *LLMMethod {
	return &LLMMethod{
		scorer:   scorer,
		provider: provider,
		logger:   logger.With().Str("component", "llm_method").Logger(),
	}
}

// Name implements Method.
func (m *LLMMethod) Name() string { return MethodComprehensive }

// Score returns generation and configuration errors so the integrator can substitute a fallback.
func (m *LLMMethod) Score(ctx context.Context, answer string, question QuestionData) (MethodResult, error) {
	if normalize(answer) == "" {
		return newMethodResult(0, question.Points, blankAnswerConfidence,
			map[string]interface{}{"method": "llm_rubric", "skipped": "empty answer"},
			[]string{"answer is empty"}), nil
	}

	criteria := CriteriaFor(answer, question)
	result, err := m.scorer.ScoreAnswer(ctx, criteria, m.provider)
	if err != nil {
		return MethodResult{}, err
	}

	details := map[string]interface{}{
		"method":        "llm_rubric",
		"aspect_scores": result.AspectScores,
		"parse_quality": string(result.Quality),
		"provider":      result.Provider.String(),
		"model":         result.Model,
		"llm_score":     result.TotalScore,
		"llm_max_score": criteria.MaxScore,
	}
	if result.DetailedAnalysis != nil {
		details["detailed_analysis"] = result.DetailedAnalysis
	}
	if result.AspectReasoning != nil {
		details["aspect_reasoning"] = result.AspectReasoning
	}
	if result.ImprovementSuggestions != nil {
		details["improvement_suggestions"] = result.ImprovementSuggestions
	}
	if result.AttentionPoints != nil {
		details["attention_points"] = result.AttentionPoints
	}
	if result.ConfidenceReasoning != nil {
		details["confidence_reasoning"] = *result.ConfidenceReasoning
	}

	reasons := make([]string, 0, 3)
	if feedback := strings.TrimSpace(result.DetailedFeedback); feedback != "" {
		reasons = append(reasons, feedback)
	}
	if result.OverallReasoning != nil && *result.OverallReasoning != result.DetailedFeedback {
		reasons = append(reasons, *result.OverallReasoning)
	}
	if result.Quality == llm.ParseSalvaged {
		m.logger.Warn().Str("provider", result.Provider.String()).Msg("rubric response salvaged from unstructured output")
		reasons = append(reasons, "language model response was unstructured; score recovered from text")
	}

	scored := newMethodResult(result.TotalScore/criteria.MaxScore, question.Points, result.Confidence, details, reasons)
	scored.TokensUsed = result.Usage.TotalTokens
	return scored, nil
}

// CriteriaFor maps a scoring request onto the rubric prompt input.
func CriteriaFor(answer string, question QuestionData) llm.ScoringCriteria {
	return llm.ScoringCriteria{
		QuestionText:     question.QuestionText,
		BackgroundText:   question.BackgroundText,
		QuestionNumber:   question.QuestionNumber,
		SubQuestions:     question.SubQuestions,
		AnswerText:       answer,
		MaxScore:         question.Points,
		ScoringAspects:   question.ScoringAspects,
		ModelAnswer:      question.ModelAnswer,
		GradingIntention: question.GradingIntention,
	}.WithDefaults()
}
