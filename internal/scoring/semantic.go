package scoring

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"
)

const (
	semanticLexicalWeight  = 0.4
	semanticValidityWeight = 0.4
	semanticLogicalWeight  = 0.2
	semanticConfidence     = 0.7
	lexicalBoost           = 1.5
)

// Embedder turns texts into vectors, one per input in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs ...string) ([][]float64, error)
}

// SemanticScorer estimates closeness to the model answer. When an Embedder is configured the
// validity sub-score is the cosine similarity of answer and model answer embeddings.
type SemanticScorer struct {
	embedder Embedder
	logger   zerolog.Logger
}

// NewSemanticScorer constructs the semantic method. embedder may be nil.
func NewSemanticScorer(embedder Embedder, logger zerolog.Logger) *SemanticScorer {
	return &SemanticScorer{
		embedder: embedder,
		logger:   logger.With().Str("component", "semantic_scorer").Logger(),
	}
}

// Name implements Method.
func (s *SemanticScorer) Name() string { return MethodSemantic }

// Score never returns an error; internal failures become a zero-score result.
func (s *SemanticScorer) Score(ctx context.Context, answer string, question QuestionData) (result MethodResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error().Interface("panic", recovered).Msg("semantic scoring failed")
			result = failedMethodResult(question.Points, recovered, "semantic scoring failed")
			err = nil
		}
	}()

	if math.IsNaN(question.Points) || question.Points <= 0 {
		return failedMethodResult(question.Points, ErrInvalidQuestion, "semantic scoring failed"), nil
	}

	details := map[string]interface{}{"method": "lexical_semantic_analysis"}
	var lexical, validity, logical float64
	if normalize(answer) != "" {
		lexical = lexicalSimilarity(answer, question.ModelAnswer)
		validity = s.semanticValidity(ctx, answer, question, details)
		logical = logicalConsistency(answer)
	}

	details["lexical_similarity"] = lexical
	details["semantic_validity"] = validity
	details["logical_consistency"] = logical

	fraction := lexical*semanticLexicalWeight + validity*semanticValidityWeight + logical*semanticLogicalWeight
	return newMethodResult(fraction, question.Points, semanticConfidence, details,
		semanticReasons(lexical, validity, logical)), nil
}

func lexicalSimilarity(answer, modelAnswer string) float64 {
	similarity := coverage(tokenSet(answer), tokenSet(modelAnswer))
	return math.Min(similarity*lexicalBoost, 1.0)
}

func (s *SemanticScorer) semanticValidity(ctx context.Context, answer string, question QuestionData, details map[string]interface{}) float64 {
	if s.embedder != nil && normalize(question.ModelAnswer) != "" {
		similarity, err := s.embeddingSimilarity(ctx, answer, question.ModelAnswer)
		if err == nil {
			details["validity_method"] = "embedding"
			return similarity
		}
		s.logger.Warn().Err(err).Msg("embedding similarity unavailable, using heuristic")
		details["validity_backend_error"] = err.Error()
	}
	details["validity_method"] = "heuristic"
	return heuristicValidity(answer, question.GradingIntention)
}

func (s *SemanticScorer) embeddingSimilarity(ctx context.Context, answer, modelAnswer string) (float64, error) {
	vectors, err := s.embedder.Embed(ctx, answer, modelAnswer)
	if err != nil {
		return 0, err
	}
	if len(vectors) != 2 {
		return 0, errors.New("embedder returned an unexpected number of vectors")
	}
	return clampUnit(cosine(vectors[0], vectors[1])), nil
}

// heuristicValidity rewards answers of substance, then how much of the grading intention
// vocabulary they pick up.
func heuristicValidity(answer, intention string) float64 {
	count := runeCount(answer)
	switch {
	case count < 10:
		return 0.3
	case count < 20:
		return 0.6
	}
	if normalize(intention) == "" {
		return 0.8
	}
	return 0.8 + 0.2*coverage(tokenSet(answer), tokenSet(intention))
}

func logicalConsistency(answer string) float64 {
	text := normalize(answer)
	score := 0.5
	if containsAny(text, logicalConnectives) {
		score += 0.2
	}
	if containsAny(text, negationMarkers) {
		score += 0.1
	}
	if containsAny(text, concretenessMarkers) {
		score += 0.2
	}
	return math.Min(score, 1.0)
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func semanticReasons(lexical, validity, logical float64) []string {
	return []string{
		banded(lexical, "high lexical similarity to the model answer",
			"moderate lexical similarity to the model answer", "low lexical similarity to the model answer"),
		banded(validity, "fits the intent of the question",
			"partly fits the intent of the question", "weak fit with the intent of the question"),
		banded(logical, "logically consistent",
			"logical consistency is largely maintained", "logical consistency needs work"),
	}
}

// banded picks a reason by the 0.7 / 0.4 thresholds used for every heuristic sub-score.
func banded(value float64, high, medium, low string) string {
	switch {
	case value > 0.7:
		return high
	case value > 0.4:
		return medium
	default:
		return low
	}
}
