package scoring

import (
	"context"
	"math"

	"github.com/rs/zerolog"
)

const (
	comprehensivePMWeight           = 0.4
	comprehensivePracticalWeight    = 0.4
	comprehensiveCompletenessWeight = 0.2
	comprehensiveConfidence         = 0.6
)

// ComprehensiveScorer is the heuristic holistic method used when no language model is available.
// It looks at project management perspective, practical validity and completeness.
type ComprehensiveScorer struct {
	logger zerolog.Logger
}

// NewComprehensiveScorer constructs the heuristic comprehensive method.
func NewComprehensiveScorer(logger zerolog.Logger) *ComprehensiveScorer {
	return &ComprehensiveScorer{logger: logger.With().Str("component", "comprehensive_scorer").Logger()}
}

// Name implements Method.
func (s *ComprehensiveScorer) Name() string { return MethodComprehensive }

// Score never returns an error; internal failures become a zero-score result.
func (s *ComprehensiveScorer) Score(_ context.Context, answer string, question QuestionData) (result MethodResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error().Interface("panic", recovered).Msg("comprehensive scoring failed")
			result = failedMethodResult(question.Points, recovered, "comprehensive scoring failed")
			err = nil
		}
	}()

	if math.IsNaN(question.Points) || question.Points <= 0 {
		return failedMethodResult(question.Points, ErrInvalidQuestion, "comprehensive scoring failed"), nil
	}

	text := normalize(answer)
	var pm, practical, completeness float64
	if text != "" {
		pm = pmPerspective(text)
		practical = practicalValidity(text)
		completeness = answerCompleteness(text, question.CharLimit())
	}

	details := map[string]interface{}{
		"pm_perspective":     pm,
		"practical_validity": practical,
		"completeness":       completeness,
		"method":             "heuristic_comprehensive_analysis",
	}
	fraction := pm*comprehensivePMWeight + practical*comprehensivePracticalWeight + completeness*comprehensiveCompletenessWeight
	return newMethodResult(fraction, question.Points, comprehensiveConfidence, details, []string{
		banded(pm, "appropriate from a project management perspective",
			"broadly appropriate from a project management perspective", "project management perspective is lacking"),
		banded(practical, "practically valid content",
			"practical validity is broadly ensured", "practical validity needs work"),
		banded(completeness, "the answer is complete",
			"the answer is broadly complete", "the answer is incomplete"),
	}), nil
}

func pmPerspective(text string) float64 {
	score := 0.3
	switch terms := countMarkers(text, pmTerms); {
	case terms >= 3:
		score += 0.4
	case terms == 2:
		score += 0.3
	case terms == 1:
		score += 0.2
	}
	if containsAny(text, managementExpressions) {
		score += 0.2
	}
	if containsAny(text, problemSolvingMarkers) {
		score += 0.1
	}
	return math.Min(score, 1.0)
}

func practicalValidity(text string) float64 {
	score := 0.4
	if containsAny(text, practicalMarkers) {
		score += 0.2
	}
	if containsAny(text, implementationTerms) {
		score += 0.2
	}
	if containsAny(text, quantitativeMarkers) {
		score += 0.2
	}
	return math.Min(score, 1.0)
}

func answerCompleteness(text string, maxChars int) float64 {
	count := float64(runeCount(text))
	limit := float64(maxChars)

	var lengthScore float64
	switch {
	case count >= limit*0.8:
		lengthScore = 1.0
	case count >= limit*0.6:
		lengthScore = 0.8
	case count >= limit*0.4:
		lengthScore = 0.6
	default:
		lengthScore = 0.3
	}

	closure := 0.5
	if endsWithAny(text, sentenceEndings) {
		closure += 0.3
	}
	japanesePredicate := containsAny(text, japaneseSubjectParticles) && containsAny(text, japanesePredicateEndings)
	if japanesePredicate || containsAny(" "+text+" ", englishPredicates) {
		closure += 0.2
	}
	return (lengthScore + math.Min(closure, 1.0)) / 2
}
