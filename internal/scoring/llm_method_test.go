package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

type stubRubricScorer struct {
	mu           sync.Mutex
	result       llm.ScoringResult
	err          error
	calls        int
	lastCriteria llm.ScoringCriteria
	lastProvider llm.ProviderType
}

func (s *stubRubricScorer) ScoreAnswer(_ context.Context, criteria llm.ScoringCriteria, providerType llm.ProviderType) (llm.ScoringResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastCriteria = criteria
	s.lastProvider = providerType
	return s.result, s.err
}

func TestLLMMethodScalesRubricScore(t *testing.T) {
	overall := "Covers the recovery plan but lacks metrics."
	rubric := &stubRubricScorer{result: llm.ScoringResult{
		TotalScore:       16,
		AspectScores:     map[string]float64{"accuracy": 4},
		DetailedFeedback: "Solid answer.",
		Confidence:       0.85,
		OverallReasoning: &overall,
		Quality:          llm.ParseStructured,
		Provider:         llm.ProviderLMStudio,
		Model:            "local-model",
		Usage:            llm.Usage{PromptTokens: 300, CompletionTokens: 120, TotalTokens: 420},
	}}
	method := NewLLMMethod(rubric, llm.ProviderLMStudio, zerolog.Nop())

	question := QuestionData{QuestionText: "Explain the recovery plan.", Points: 20, ModelAnswer: "Re-baseline."}
	result, err := method.Score(context.Background(), "We re-baselined the schedule.", question)

	require.NoError(t, err)
	require.Equal(t, 1, rubric.calls)
	require.Equal(t, llm.ProviderLMStudio, rubric.lastProvider)
	require.Equal(t, 20.0, rubric.lastCriteria.MaxScore)
	require.Equal(t, llm.DefaultScoringAspects, rubric.lastCriteria.ScoringAspects)
	require.Equal(t, "Re-baseline.", rubric.lastCriteria.ModelAnswer)

	require.InDelta(t, 16.0, result.Score, 1e-9)
	require.InDelta(t, 80.0, result.Percentage, 1e-9)
	require.Equal(t, 0.85, result.Confidence)
	require.Equal(t, 420, result.TokensUsed)
	require.Equal(t, []string{"Solid answer.", overall}, result.Reasons)
	require.Equal(t, "llm_rubric", result.Details["method"])
	require.Equal(t, "structured", result.Details["parse_quality"])
	require.Equal(t, "lmstudio", result.Details["provider"])
	require.NoError(t, result.check())
}

func TestLLMMethodClampsOverscoringRubric(t *testing.T) {
	rubric := &stubRubricScorer{result: llm.ScoringResult{TotalScore: 12.5, Confidence: 0.7, Quality: llm.ParseStructured}}
	method := NewLLMMethod(rubric, "", zerolog.Nop())

	result, err := method.Score(context.Background(), "answer", QuestionData{Points: 10})

	require.NoError(t, err)
	require.Equal(t, 10.0, rubric.lastCriteria.MaxScore)
	require.InDelta(t, 10.0, result.MaxScore, 1e-9)
	require.InDelta(t, 10.0, result.Score, 1e-9)
	require.Empty(t, rubric.lastProvider)
}

func TestLLMMethodSkipsBlankAnswer(t *testing.T) {
	rubric := &stubRubricScorer{}
	method := NewLLMMethod(rubric, "", zerolog.Nop())

	result, err := method.Score(context.Background(), " \n\t", QuestionData{Points: 25})

	require.NoError(t, err)
	require.Zero(t, rubric.calls)
	require.Equal(t, 0.0, result.Score)
	require.Equal(t, blankAnswerConfidence, result.Confidence)
	require.Equal(t, "empty answer", result.Details["skipped"])
}

func TestLLMMethodReturnsProviderErrors(t *testing.T) {
	rubric := &stubRubricScorer{err: llm.ErrProviderNotConfigured}
	method := NewLLMMethod(rubric, llm.ProviderGemini, zerolog.Nop())

	_, err := method.Score(context.Background(), "answer", QuestionData{Points: 25})

	require.True(t, errors.Is(err, llm.ErrProviderNotConfigured))
}

func TestLLMMethodNotesSalvagedResponse(t *testing.T) {
	rubric := &stubRubricScorer{result: llm.ScoringResult{
		TotalScore:       15,
		DetailedFeedback: "Reasonable coverage.",
		Confidence:       0.7,
		Reasoning:        llm.UnstructuredReasoning,
		Quality:          llm.ParseSalvaged,
	}}
	method := NewLLMMethod(rubric, "", zerolog.Nop())

	result, err := method.Score(context.Background(), "answer", QuestionData{Points: 25})

	require.NoError(t, err)
	require.Len(t, result.Reasons, 2)
	require.Contains(t, result.Reasons[1], "unstructured")
	require.Equal(t, "salvaged", result.Details["parse_quality"])
}

func TestCriteriaForCopiesQuestion(t *testing.T) {
	question := QuestionData{
		QuestionText:     "q",
		BackgroundText:   "bg",
		QuestionNumber:   "2",
		SubQuestions:     []string{"a", "b"},
		ModelAnswer:      "m",
		GradingIntention: "g",
		Points:           30,
		ScoringAspects:   []string{"x", "y", "z"},
	}

	criteria := CriteriaFor("answer", question)

	require.Equal(t, "answer", criteria.AnswerText)
	require.Equal(t, "bg", criteria.BackgroundText)
	require.Equal(t, "2", criteria.QuestionNumber)
	require.Equal(t, []string{"a", "b"}, criteria.SubQuestions)
	require.Equal(t, 30.0, criteria.MaxScore)
	require.Equal(t, []string{"x", "y", "z"}, criteria.ScoringAspects)
	require.InDelta(t, 10.0, criteria.AspectMaxScore(), 1e-9)
}
