package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// UnstructuredReasoning flags a result recovered from free text.
	UnstructuredReasoning = "unstructured response from language model"

	salvageScoreRatio        = 0.6
	salvageConfidence        = 0.7
	structuredConfidence     = 0.5
	structuredReasoningLabel = "structured response from language model"
)

var (
	fencedBlockPattern   = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	totalScorePattern    = regexp.MustCompile(`"?total_score"?\s*[:=]\s*"?(-?\d+(?:\.\d+)?)`)
	confidencePattern    = regexp.MustCompile(`"?confidence"?\s*[:=]\s*"?(-?\d+(?:\.\d+)?)`)
)

// scoringSchemaJSON gates the structured stage on the score fields only. Optional fields are decoded
// one by one so a single mistyped field does not discard the rest of the payload.
const scoringSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["total_score"],
  "properties": {
    "total_score": {"$ref": "#/$defs/number"},
    "confidence": {"anyOf": [{"$ref": "#/$defs/number"}, {"type": "null"}]}
  },
  "$defs": {
    "number": {"anyOf": [{"type": "number"}, {"type": "string", "pattern": "^\\s*-?\\d+(\\.\\d+)?\\s*$"}]}
  }
}`

var scoringSchema = jsonschema.MustCompileString("scoring_result.schema.json", scoringSchemaJSON)

// flexFloat accepts JSON numbers and numeric strings; models emit both.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		trimmed = []byte(strings.TrimSpace(text))
	}
	value, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", string(data), err)
	}
	*f = flexFloat(value)
	return nil
}

type analysisPayload struct {
	Strengths       []string
	Weaknesses      []string
	MissingElements []string
	SpecificIssues  []string
}

type aspectPayload struct {
	Score           float64
	Reasoning       *string
	Evidence        *string
	DeductionPoints *string
}

type scoringPayload struct {
	TotalScore             float64
	Confidence             *float64
	AspectScores           map[string]float64
	DetailedFeedback       *string
	Reasoning              *string
	DetailedAnalysis       *analysisPayload
	AspectReasoning        map[string]aspectPayload
	ImprovementSuggestions []string
	ConfidenceReasoning    *string
	OverallReasoning       *string
	AttentionPoints        []string
}

// ParseScoringResponse turns raw model output into a ScoringResult. It never fails: output whose
// score fields do not parse is salvaged from the text and tagged ParseSalvaged.
func ParseScoringResponse(content string, criteria ScoringCriteria) ScoringResult {
	criteria = criteria.WithDefaults()

	var result ScoringResult
	if payload, ok := decodeStructured(ExtractPayload(content)); ok {
		result = structuredResult(payload, criteria)
	} else {
		result = salvageResult(content, criteria)
	}

	result.TotalScore = clamp(result.TotalScore, 0, criteria.MaxScore)
	result.Confidence = clamp(result.Confidence, 0, 1)
	return result
}

// ExtractPayload trims the content and, when it contains a fenced code block, returns only the
// fenced text. The language tag after the opening fence is optional.
func ExtractPayload(content string) string {
	trimmed := strings.TrimSpace(content)
	if match := fencedBlockPattern.FindStringSubmatch(trimmed); match != nil {
		return strings.TrimSpace(match[1])
	}
	return trimmed
}

func decodeStructured(text string) (scoringPayload, bool) {
	for _, candidate := range structuredCandidates(text) {
		var document interface{}
		if err := json.Unmarshal([]byte(candidate), &document); err != nil {
			continue
		}
		if err := scoringSchema.Validate(document); err != nil {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
			continue
		}
		total, ok := decodeNumber(fields["total_score"])
		if !ok {
			continue
		}
		payload := decodeOptionalFields(fields)
		payload.TotalScore = total
		return payload, true
	}
	return scoringPayload{}, false
}

// decodeOptionalFields keeps every well-typed optional field and drops the rest.
func decodeOptionalFields(fields map[string]json.RawMessage) scoringPayload {
	payload := scoringPayload{
		DetailedFeedback:       decodeText(fields["detailed_feedback"]),
		Reasoning:              decodeText(fields["reasoning"]),
		ImprovementSuggestions: decodeStrings(fields["improvement_suggestions"]),
		ConfidenceReasoning:    decodeText(fields["confidence_reasoning"]),
		OverallReasoning:       decodeText(fields["overall_reasoning"]),
		AttentionPoints:        decodeStrings(fields["attention_points"]),
	}
	if confidence, ok := decodeNumber(fields["confidence"]); ok {
		payload.Confidence = &confidence
	}

	if scores, ok := decodeObject(fields["aspect_scores"]); ok {
		payload.AspectScores = make(map[string]float64, len(scores))
		for aspect, raw := range scores {
			if score, ok := decodeNumber(raw); ok {
				payload.AspectScores[aspect] = score
			}
		}
	}

	if analysis, ok := decodeObject(fields["detailed_analysis"]); ok {
		payload.DetailedAnalysis = &analysisPayload{
			Strengths:       decodeStrings(analysis["strengths"]),
			Weaknesses:      decodeStrings(analysis["weaknesses"]),
			MissingElements: decodeStrings(analysis["missing_elements"]),
			SpecificIssues:  decodeStrings(analysis["specific_issues"]),
		}
	}

	if aspects, ok := decodeObject(fields["aspect_reasoning"]); ok {
		payload.AspectReasoning = make(map[string]aspectPayload, len(aspects))
		for aspect, raw := range aspects {
			detail, ok := decodeObject(raw)
			if !ok {
				continue
			}
			score, _ := decodeNumber(detail["score"])
			payload.AspectReasoning[aspect] = aspectPayload{
				Score:           score,
				Reasoning:       decodeText(detail["reasoning"]),
				Evidence:        decodeText(detail["evidence"]),
				DeductionPoints: decodeText(detail["deduction_points"]),
			}
		}
	}

	return payload
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, false
	}
	var value flexFloat
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return 0, false
	}
	return float64(value), true
}

func decodeText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var text *string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil
	}
	return text
}

func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil || object == nil {
		return nil, false
	}
	return object, true
}

// structuredCandidates lists the strict text first, then light repairs: trailing commas removed
// and the outermost object cut out of surrounding prose.
func structuredCandidates(text string) []string {
	candidates := []string{text}
	if repaired := trailingCommaPattern.ReplaceAllString(text, "$1"); repaired != text {
		candidates = append(candidates, repaired)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start && (start > 0 || end < len(text)-1) {
		object := text[start : end+1]
		candidates = append(candidates, object, trailingCommaPattern.ReplaceAllString(object, "$1"))
	}
	return candidates
}

func structuredResult(payload scoringPayload, criteria ScoringCriteria) ScoringResult {
	aspectMax := criteria.AspectMaxScore()
	result := ScoringResult{
		Confidence: structuredConfidence,
		Quality:    ParseStructured,
	}
	result.TotalScore = payload.TotalScore
	if payload.Confidence != nil {
		result.Confidence = *payload.Confidence
	}

	if payload.DetailedAnalysis != nil {
		result.DetailedAnalysis = &DetailedAnalysis{
			Strengths:       nonNil(payload.DetailedAnalysis.Strengths),
			Weaknesses:      nonNil(payload.DetailedAnalysis.Weaknesses),
			MissingElements: nonNil(payload.DetailedAnalysis.MissingElements),
			SpecificIssues:  nonNil(payload.DetailedAnalysis.SpecificIssues),
		}
	}

	if payload.AspectReasoning != nil {
		result.AspectReasoning = make(map[string]AspectDetail, len(payload.AspectReasoning))
		for aspect, detail := range payload.AspectReasoning {
			result.AspectReasoning[aspect] = AspectDetail{
				Score:           clamp(detail.Score, 0, aspectMax),
				Reasoning:       stringValue(detail.Reasoning),
				Evidence:        stringValue(detail.Evidence),
				DeductionPoints: nonEmpty(detail.DeductionPoints),
			}
		}
	}

	result.ImprovementSuggestions = payload.ImprovementSuggestions
	result.AttentionPoints = payload.AttentionPoints
	result.ConfidenceReasoning = nonEmpty(payload.ConfidenceReasoning)
	result.OverallReasoning = nonEmpty(payload.OverallReasoning)

	switch {
	case len(payload.AspectScores) > 0:
		result.AspectScores = make(map[string]float64, len(payload.AspectScores))
		for aspect, score := range payload.AspectScores {
			result.AspectScores[aspect] = clamp(score, 0, aspectMax)
		}
	case len(result.AspectReasoning) > 0:
		result.AspectScores = make(map[string]float64, len(result.AspectReasoning))
		for aspect, detail := range result.AspectReasoning {
			result.AspectScores[aspect] = detail.Score
		}
	default:
		result.AspectScores = uniformAspectScores(criteria, clamp(result.TotalScore, 0, criteria.MaxScore))
	}

	result.DetailedFeedback = strings.TrimSpace(stringValue(payload.DetailedFeedback))
	if result.DetailedFeedback == "" {
		result.DetailedFeedback = synthesizeFeedback(result, criteria)
	}

	result.Reasoning = strings.TrimSpace(stringValue(payload.Reasoning))
	if result.Reasoning == "" {
		switch {
		case result.OverallReasoning != nil:
			result.Reasoning = *result.OverallReasoning
		case result.ConfidenceReasoning != nil:
			result.Reasoning = *result.ConfidenceReasoning
		default:
			result.Reasoning = structuredReasoningLabel
		}
	}

	return result
}

// salvageResult recovers the score fields from free text. The raw content is kept as feedback.
func salvageResult(content string, criteria ScoringCriteria) ScoringResult {
	text := ExtractPayload(content)
	total := criteria.MaxScore * salvageScoreRatio
	if match := totalScorePattern.FindStringSubmatch(text); match != nil {
		if value, err := strconv.ParseFloat(match[1], 64); err == nil {
			total = value
		}
	}
	confidence := salvageConfidence
	if match := confidencePattern.FindStringSubmatch(text); match != nil {
		if value, err := strconv.ParseFloat(match[1], 64); err == nil {
			confidence = value
		}
	}

	total = clamp(total, 0, criteria.MaxScore)
	return ScoringResult{
		TotalScore:       total,
		AspectScores:     uniformAspectScores(criteria, total),
		DetailedFeedback: content,
		Confidence:       confidence,
		Reasoning:        UnstructuredReasoning,
		Quality:          ParseSalvaged,
	}
}

func uniformAspectScores(criteria ScoringCriteria, total float64) map[string]float64 {
	share := total / float64(len(criteria.ScoringAspects))
	scores := make(map[string]float64, len(criteria.ScoringAspects))
	for _, aspect := range criteria.ScoringAspects {
		scores[aspect] = share
	}
	return scores
}

func synthesizeFeedback(result ScoringResult, criteria ScoringCriteria) string {
	if result.OverallReasoning != nil {
		return *result.OverallReasoning
	}
	if analysis := result.DetailedAnalysis; analysis != nil {
		parts := make([]string, 0, 2)
		if len(analysis.Strengths) > 0 {
			parts = append(parts, "Strengths: "+strings.Join(analysis.Strengths, "; "))
		}
		if len(analysis.Weaknesses) > 0 {
			parts = append(parts, "Weaknesses: "+strings.Join(analysis.Weaknesses, "; "))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return fmt.Sprintf("Scored %s of %s without written feedback.",
		formatNumber(clamp(result.TotalScore, 0, criteria.MaxScore)), formatNumber(criteria.MaxScore))
}

func clamp(value, lower, upper float64) float64 {
	if math.IsNaN(value) || value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
