package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testCriteria() ScoringCriteria {
	return ScoringCriteria{
		QuestionText: "Describe how you would recover a delayed schedule.",
		AnswerText:   "Re-baseline the critical path and negotiate scope with the sponsor.",
		MaxScore:     25,
	}
}

func TestParseScoringResponseFenceTagIsOptional(t *testing.T) {
	payload := `{"total_score": 18, "aspect_scores": {"Logical structure": 4}, "detailed_feedback": "ok", "confidence": 0.8, "reasoning": "fine"}`

	tagged := ParseScoringResponse("```json\n"+payload+"\n```", testCriteria())
	bare := ParseScoringResponse("```\n"+payload+"\n```", testCriteria())
	plain := ParseScoringResponse(payload, testCriteria())

	require.Equal(t, tagged, bare)
	require.Equal(t, tagged, plain)
	require.Equal(t, ParseStructured, tagged.Quality)
	require.Equal(t, 18.0, tagged.TotalScore)
	require.Equal(t, 0.8, tagged.Confidence)
	require.Equal(t, "ok", tagged.DetailedFeedback)
	require.Equal(t, "fine", tagged.Reasoning)
	require.Equal(t, map[string]float64{"Logical structure": 4}, tagged.AspectScores)
}

func TestParseScoringResponseSalvagesProse(t *testing.T) {
	content := "The answer covers the essentials. total_score: 17.5 and confidence: 0.65 overall."

	result := ParseScoringResponse(content, testCriteria())

	require.Equal(t, ParseSalvaged, result.Quality)
	require.Equal(t, UnstructuredReasoning, result.Reasoning)
	require.Equal(t, 17.5, result.TotalScore)
	require.Equal(t, 0.65, result.Confidence)
	require.Equal(t, content, result.DetailedFeedback)
	require.Len(t, result.AspectScores, len(DefaultScoringAspects))
	for _, score := range result.AspectScores {
		require.InDelta(t, 3.5, score, 1e-9)
	}
}

func TestParseScoringResponseSalvageDefaults(t *testing.T) {
	result := ParseScoringResponse("I cannot produce JSON today.", testCriteria())

	require.Equal(t, ParseSalvaged, result.Quality)
	require.InDelta(t, 15.0, result.TotalScore, 1e-9)
	require.Equal(t, 0.7, result.Confidence)
	require.Nil(t, result.DetailedAnalysis)
}

func TestParseScoringResponseClampsOutOfRangeValues(t *testing.T) {
	content := `{"total_score": 999, "confidence": 1.7, "aspect_scores": {"Written expression": 12}, "detailed_feedback": "x", "reasoning": "y"}`

	result := ParseScoringResponse(content, testCriteria())

	require.Equal(t, ParseStructured, result.Quality)
	require.Equal(t, 25.0, result.TotalScore)
	require.Equal(t, 1.0, result.Confidence)
	require.Equal(t, 5.0, result.AspectScores["Written expression"])

	negative := ParseScoringResponse("total_score: -4, confidence: -1", testCriteria())
	require.Equal(t, 0.0, negative.TotalScore)
	require.Equal(t, 0.0, negative.Confidence)
}

func TestParseScoringResponseLeavesAbsentFieldsUnset(t *testing.T) {
	content := `{"total_score": 10, "aspect_scores": {}, "detailed_feedback": "short", "confidence": 0.4, "reasoning": "r"}`

	result := ParseScoringResponse(content, testCriteria())

	require.Nil(t, result.DetailedAnalysis)
	require.Nil(t, result.AspectReasoning)
	require.Nil(t, result.ImprovementSuggestions)
	require.Nil(t, result.ConfidenceReasoning)
	require.Nil(t, result.OverallReasoning)
	require.Nil(t, result.AttentionPoints)
}

func TestParseScoringResponseSynthesizesLegacyFields(t *testing.T) {
	content := `{
  "total_score": 20,
  "aspect_reasoning": {
    "Logical structure": {"score": 4, "reasoning": "clear flow", "evidence": "because the vendor slipped", "deduction_points": ""}
  },
  "detailed_analysis": {"strengths": ["clear flow"], "weaknesses": []},
  "improvement_suggestions": ["quantify the impact"],
  "overall_reasoning": "Solid answer with minor gaps",
  "attention_points": ["check the cost figure"]
}`

	result := ParseScoringResponse(content, testCriteria())

	require.Equal(t, ParseStructured, result.Quality)
	require.Equal(t, "Solid answer with minor gaps", result.DetailedFeedback)
	require.Equal(t, "Solid answer with minor gaps", result.Reasoning)
	require.Equal(t, 0.5, result.Confidence)
	require.Equal(t, map[string]float64{"Logical structure": 4}, result.AspectScores)
	require.NotNil(t, result.DetailedAnalysis)
	require.Equal(t, []string{"clear flow"}, result.DetailedAnalysis.Strengths)
	require.Empty(t, result.DetailedAnalysis.MissingElements)
	require.Equal(t, "because the vendor slipped", result.AspectReasoning["Logical structure"].Evidence)
	require.Nil(t, result.AspectReasoning["Logical structure"].DeductionPoints)
	require.Equal(t, []string{"quantify the impact"}, result.ImprovementSuggestions)
	require.Equal(t, []string{"check the cost figure"}, result.AttentionPoints)
}

func TestParseScoringResponseAcceptsNumericStrings(t *testing.T) {
	result := ParseScoringResponse(`{"total_score": "21.5", "confidence": "0.9", "detailed_feedback": "f", "reasoning": "r"}`, testCriteria())

	require.Equal(t, ParseStructured, result.Quality)
	require.Equal(t, 21.5, result.TotalScore)
	require.Equal(t, 0.9, result.Confidence)
}

func TestParseScoringResponseRepairsEmbeddedObject(t *testing.T) {
	content := `Here is my evaluation: {"total_score": 12, "confidence": 0.6,} Let me know if you need more.`

	result := ParseScoringResponse(content, testCriteria())

	require.Equal(t, ParseStructured, result.Quality)
	require.Equal(t, 12.0, result.TotalScore)
	require.Equal(t, 0.6, result.Confidence)
	require.NotEmpty(t, result.DetailedFeedback)
}

func TestParseScoringResponseRejectsSchemaViolations(t *testing.T) {
	result := ParseScoringResponse(`{"total_score": "high", "confidence": 0.9}`, testCriteria())

	require.Equal(t, ParseSalvaged, result.Quality)
	require.InDelta(t, 15.0, result.TotalScore, 1e-9)
	require.Equal(t, 0.9, result.Confidence)
}

func TestParseScoringResponseDropsOnlyMistypedOptionalFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		check   func(t *testing.T, result ScoringResult)
	}{
		{
			name:    "null aspect score",
			content: `{"total_score": 20, "confidence": 0.8, "aspect_scores": {"Logical structure": null, "Written expression": 3}, "overall_reasoning": "good", "attention_points": ["x"]}`,
			check: func(t *testing.T, result ScoringResult) {
				require.Equal(t, map[string]float64{"Written expression": 3}, result.AspectScores)
			},
		},
		{
			name: "deduction points as a list",
			content: `{"total_score": 20, "confidence": 0.8, "overall_reasoning": "good", "attention_points": ["x"],
				"aspect_reasoning": {"Logical structure": {"score": 4, "reasoning": "clear", "deduction_points": ["a", "b"]}}}`,
			check: func(t *testing.T, result ScoringResult) {
				detail := result.AspectReasoning["Logical structure"]
				require.Equal(t, 4.0, detail.Score)
				require.Equal(t, "clear", detail.Reasoning)
				require.Nil(t, detail.DeductionPoints)
			},
		},
		{
			name: "strengths as a string",
			content: `{"total_score": 20, "confidence": 0.8, "overall_reasoning": "good", "attention_points": ["x"],
				"detailed_analysis": {"strengths": "clear flow", "weaknesses": ["no metrics"]}}`,
			check: func(t *testing.T, result ScoringResult) {
				require.NotNil(t, result.DetailedAnalysis)
				require.Empty(t, result.DetailedAnalysis.Strengths)
				require.Equal(t, []string{"no metrics"}, result.DetailedAnalysis.Weaknesses)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ParseScoringResponse(tc.content, testCriteria())

			require.Equal(t, ParseStructured, result.Quality)
			require.Equal(t, 20.0, result.TotalScore)
			require.Equal(t, 0.8, result.Confidence)
			require.NotNil(t, result.OverallReasoning)
			require.Equal(t, "good", *result.OverallReasoning)
			require.Equal(t, "good", result.Reasoning)
			require.Equal(t, []string{"x"}, result.AttentionPoints)
			tc.check(t, result)
		})
	}
}

func TestParseScoringResponseSalvageKeepsRawContent(t *testing.T) {
	content := "```text\nThe plan is sound. total_score: 14\n```"

	result := ParseScoringResponse(content, testCriteria())

	require.Equal(t, ParseSalvaged, result.Quality)
	require.Equal(t, 14.0, result.TotalScore)
	require.Equal(t, content, result.DetailedFeedback)
}

func TestExtractPayload(t *testing.T) {
	require.Equal(t, `{"a":1}`, ExtractPayload("  ```json\n{\"a\":1}\n```  "))
	require.Equal(t, `{"a":1}`, ExtractPayload("prefix ```{\"a\":1}``` suffix"))
	require.Equal(t, "no fences here", ExtractPayload("  no fences here \n"))
}
