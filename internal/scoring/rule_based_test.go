package scoring

import (
	"context"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRuleBasedScorerFullMarksAtLimit(t *testing.T) {
	prefix := "リスク計画を見直したため、品質が改善"
	answer := prefix + strings.Repeat("し", 40-utf8.RuneCountInString(prefix)-2) + "た。"
	require.Equal(t, 40, utf8.RuneCountInString(answer))

	question := QuestionData{Points: 25, MaxChars: 40, Keywords: []string{"リスク", "計画", "品質"}}
	result, err := NewRuleBasedScorer(zerolog.Nop()).Score(context.Background(), answer, question)

	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Score, 0.9*question.Points)
	require.LessOrEqual(t, result.Score, question.Points)
	require.InDelta(t, result.Score/result.MaxScore*100, result.Percentage, 1e-9)
	require.Equal(t, ruleConfidence, result.Confidence)
}

func TestRuleBasedScorerEmptyAnswer(t *testing.T) {
	for _, keywords := range [][]string{nil, {"WBS"}} {
		result, err := NewRuleBasedScorer(zerolog.Nop()).Score(context.Background(), "", QuestionData{Points: 25, Keywords: keywords})

		require.NoError(t, err)
		require.Equal(t, 0.0, result.Score)
		require.Equal(t, 0.0, result.Percentage)
		length := result.Details["length_evaluation"].(lengthEvaluation)
		require.Equal(t, LengthEmpty, length.Status)
		require.Contains(t, result.Reasons, "answer is empty")
	}
}

func TestRuleBasedScorerKeywordBands(t *testing.T) {
	keywords := []string{"scope", "schedule", "cost", "quality", "risk"}
	cases := []struct {
		answer string
		want   float64
	}{
		{"Scope, schedule, cost, quality and risk were reviewed.", 1.0},
		{"Scope, schedule, cost and quality were reviewed.", 1.0},
		{"Scope, schedule and cost were reviewed.", 0.8},
		{"Scope and schedule were reviewed.", 0.6},
		{"Only the scope was reviewed.", 0.4},
		{"Nothing relevant was reviewed.", 0.2},
	}
	for _, tc := range cases {
		score, evaluation := evaluateKeywords(tc.answer, keywords)
		require.Equal(t, tc.want, score, tc.answer)
		require.Equal(t, len(keywords), evaluation.Total)
	}

	score, evaluation := evaluateKeywords("any answer", []string{" ", ""})
	require.Equal(t, 1.0, score)
	require.Zero(t, evaluation.Total)
}

func TestRuleBasedScorerLengthBands(t *testing.T) {
	cases := []struct {
		chars  int
		score  float64
		status string
	}{
		{0, 0, LengthEmpty},
		{19, 0.7, LengthShort},
		{20, 0.9, LengthGood},
		{29, 1.0, LengthOptimal},
		{40, 1.0, LengthOptimal},
		{44, 0.9, LengthSlightlyOver},
		{52, 0.7, LengthOver},
		{60, 0.5, LengthSignificantlyOver},
	}
	for _, tc := range cases {
		score, evaluation := evaluateLength(strings.Repeat("字", tc.chars), 40)
		require.Equal(t, tc.score, score, tc.chars)
		require.Equal(t, tc.status, evaluation.Status, tc.chars)
		require.Equal(t, tc.chars, evaluation.CharCount)
	}
}

func TestRuleBasedScorerStructure(t *testing.T) {
	score, evaluation := evaluateStructure("Because the vendor slipped, the project risk increased.")
	require.True(t, evaluation.HasProperStructure)
	require.True(t, evaluation.HasCausalExpressions)
	require.True(t, evaluation.HasTechnicalTerms)
	require.InDelta(t, 1.0, score, 1e-9)

	score, _ = evaluateStructure("done")
	require.Equal(t, 0.5, score)
}

func TestRuleBasedScorerInvalidPoints(t *testing.T) {
	result, err := NewRuleBasedScorer(zerolog.Nop()).Score(context.Background(), "answer", QuestionData{Points: math.NaN()})

	require.NoError(t, err)
	require.Equal(t, 0.0, result.Score)
	require.Contains(t, result.Details, "error")
}

func TestRuleBasedScorerUsesDefaultCharLimit(t *testing.T) {
	result, err := NewRuleBasedScorer(zerolog.Nop()).Score(context.Background(), strings.Repeat("字", 30), QuestionData{Points: 10})

	require.NoError(t, err)
	length := result.Details["length_evaluation"].(lengthEvaluation)
	require.Equal(t, DefaultMaxChars, length.MaxChars)
	require.Equal(t, LengthOptimal, length.Status)
}
