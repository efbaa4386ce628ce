package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
)

const (
	ruleKeywordWeight   = 0.6
	ruleLengthWeight    = 0.2
	ruleStructureWeight = 0.2
	ruleConfidence      = 0.8
)

// Length statuses reported in the rule-based details.
const (
	LengthEmpty             = "empty"
	LengthOptimal           = "optimal"
	LengthGood              = "good"
	LengthShort             = "short"
	LengthSlightlyOver      = "slightly_over"
	LengthOver              = "over"
	LengthSignificantlyOver = "significantly_over"
)

// RuleBasedScorer scores keyword coverage, length fit and sentence structure.
type RuleBasedScorer struct {
	logger zerolog.Logger
}

// NewRuleBasedScorer constructs the deterministic rule-based method.
func NewRuleBasedScorer(logger zerolog.Logger) *RuleBasedScorer {
	return &RuleBasedScorer{logger: logger.With().Str("component", "rule_based_scorer").Logger()}
}

// Name implements Method.
func (s *RuleBasedScorer) Name() string { return MethodRuleBased }

// Score never returns an error; internal failures become a zero-score result.
func (s *RuleBasedScorer) Score(_ context.Context, answer string, question QuestionData) (result MethodResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error().Interface("panic", recovered).Msg("rule-based scoring failed")
			result = failedMethodResult(question.Points, recovered, "rule-based scoring failed")
			err = nil
		}
	}()

	if math.IsNaN(question.Points) || question.Points <= 0 {
		return failedMethodResult(question.Points, fmt.Errorf("%w: points must be positive", ErrInvalidQuestion),
			"rule-based scoring failed"), nil
	}

	keywordScore, keywordDetails := evaluateKeywords(answer, question.Keywords)
	lengthScore, lengthDetails := evaluateLength(answer, question.CharLimit())
	structureScore, structureDetails := evaluateStructure(answer)

	fraction := keywordScore*ruleKeywordWeight + lengthScore*ruleLengthWeight + structureScore*ruleStructureWeight
	details := map[string]interface{}{
		"keyword_evaluation":   keywordDetails,
		"length_evaluation":    lengthDetails,
		"structure_evaluation": structureDetails,
	}
	return newMethodResult(fraction, question.Points, ruleConfidence, details,
		ruleReasons(keywordDetails, lengthDetails, structureDetails)), nil
}

type keywordEvaluation struct {
	Matched    []string `json:"matched"`
	Total      int      `json:"total"`
	MatchRatio float64  `json:"match_ratio"`
	Score      float64  `json:"score"`
}

func evaluateKeywords(answer string, keywords []string) (float64, keywordEvaluation) {
	required := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			required = append(required, trimmed)
		}
	}

	text := normalize(answer)
	if text == "" {
		return 0, keywordEvaluation{Matched: []string{}, Total: len(required)}
	}
	if len(required) == 0 {
		return 1, keywordEvaluation{Matched: []string{}, Score: 1}
	}

	matched := make([]string, 0, len(required))
	for _, keyword := range required {
		if strings.Contains(text, strings.ToLower(keyword)) {
			matched = append(matched, keyword)
		}
	}

	ratio := float64(len(matched)) / float64(len(required))
	var score float64
	switch {
	case ratio >= 0.8:
		score = 1.0
	case ratio >= 0.6:
		score = 0.8
	case ratio >= 0.4:
		score = 0.6
	case ratio >= 0.2:
		score = 0.4
	default:
		score = 0.2
	}
	return score, keywordEvaluation{Matched: matched, Total: len(required), MatchRatio: ratio, Score: score}
}

type lengthEvaluation struct {
	CharCount int     `json:"char_count"`
	MaxChars  int     `json:"max_chars"`
	Score     float64 `json:"score"`
	Status    string  `json:"status"`
}

func evaluateLength(answer string, maxChars int) (float64, lengthEvaluation) {
	count := runeCount(answer)
	evaluation := lengthEvaluation{CharCount: count, MaxChars: maxChars}
	limit := float64(maxChars)

	switch {
	case count == 0:
		evaluation.Score, evaluation.Status = 0, LengthEmpty
	case count <= maxChars:
		switch {
		case float64(count) >= limit*0.7:
			evaluation.Score, evaluation.Status = 1.0, LengthOptimal
		case float64(count) >= limit*0.5:
			evaluation.Score, evaluation.Status = 0.9, LengthGood
		default:
			evaluation.Score, evaluation.Status = 0.7, LengthShort
		}
	default:
		excess := (float64(count) - limit) / limit
		switch {
		case excess <= 0.1:
			evaluation.Score, evaluation.Status = 0.9, LengthSlightlyOver
		case excess <= 0.3:
			evaluation.Score, evaluation.Status = 0.7, LengthOver
		default:
			evaluation.Score, evaluation.Status = 0.5, LengthSignificantlyOver
		}
	}
	return evaluation.Score, evaluation
}

type structureEvaluation struct {
	HasProperStructure   bool    `json:"has_proper_structure"`
	HasCausalExpressions bool    `json:"has_causal_expressions"`
	HasTechnicalTerms    bool    `json:"has_technical_terms"`
	Score                float64 `json:"score"`
}

func evaluateStructure(answer string) (float64, structureEvaluation) {
	text := normalize(answer)
	if text == "" {
		return 0, structureEvaluation{}
	}

	evaluation := structureEvaluation{
		HasProperStructure:   containsAny(text, sentenceMarkers) || endsWithAny(text, sentenceEndings),
		HasCausalExpressions: containsAny(text, causalMarkers),
		HasTechnicalTerms:    containsAny(text, technicalTerms),
	}
	score := 0.5
	if evaluation.HasProperStructure {
		score += 0.2
	}
	if evaluation.HasCausalExpressions {
		score += 0.2
	}
	if evaluation.HasTechnicalTerms {
		score += 0.1
	}
	evaluation.Score = math.Min(score, 1.0)
	return evaluation.Score, evaluation
}

func ruleReasons(keywords keywordEvaluation, length lengthEvaluation, structure structureEvaluation) []string {
	reasons := make([]string, 0, 5)
	if keywords.Total > 0 {
		reasons = append(reasons, fmt.Sprintf("keywords: %d/%d matched", len(keywords.Matched), keywords.Total))
		if len(keywords.Matched) > 0 {
			reasons = append(reasons, "matched keywords: "+strings.Join(keywords.Matched, ", "))
		}
	}

	switch length.Status {
	case LengthEmpty:
		reasons = append(reasons, "answer is empty")
	case LengthOptimal:
		reasons = append(reasons, "length: appropriate")
	case LengthShort:
		reasons = append(reasons, fmt.Sprintf("length: somewhat short (%d/%d chars)", length.CharCount, length.MaxChars))
	case LengthOver, LengthSignificantlyOver:
		reasons = append(reasons, fmt.Sprintf("length: over the limit (%d/%d chars)", length.CharCount, length.MaxChars))
	}

	if structure.HasCausalExpressions {
		reasons = append(reasons, "causal relationships are explicit")
	}
	if structure.HasTechnicalTerms {
		reasons = append(reasons, "uses domain terminology appropriately")
	}
	return reasons
}
