package llm

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var promptPolicy = bluemonday.StrictPolicy()

// sanitizeForPrompt strips markup pasted into candidate or question text while keeping the
// literal characters the model has to quote back as evidence.
func sanitizeForPrompt(input string) string {
	return strings.TrimSpace(html.UnescapeString(promptPolicy.Sanitize(input)))
}

func graderSystemPreamble() string {
	return "You are a certified grader for the project manager professional examination. " +
		"Grade strictly but fairly. A second-pass human reviewer will check your result, so justify every " +
		"score with quoted evidence from the candidate's answer and keep the analysis structured."
}

// BuildScoringPrompt renders the rubric instruction document for one answer.
func BuildScoringPrompt(criteria ScoringCriteria) string {
	criteria = criteria.WithDefaults()
	aspectMax := criteria.AspectMaxScore()

	builder := strings.Builder{}
	builder.WriteString(graderSystemPreamble())
	builder.WriteString("\n")

	if background := sanitizeForPrompt(criteria.BackgroundText); background != "" {
		builder.WriteString("\n## Background\n")
		builder.WriteString(background)
		builder.WriteString("\n")
	}

	builder.WriteString("\n## Question")
	if number := strings.TrimSpace(criteria.QuestionNumber); number != "" {
		builder.WriteString(" ")
		builder.WriteString(number)
	}
	builder.WriteString("\n")
	builder.WriteString(sanitizeForPrompt(criteria.QuestionText))
	builder.WriteString("\n")

	subQuestions := make([]string, 0, len(criteria.SubQuestions))
	for _, sub := range criteria.SubQuestions {
		if cleaned := sanitizeForPrompt(sub); cleaned != "" {
			subQuestions = append(subQuestions, cleaned)
		}
	}
	if len(subQuestions) > 0 {
		builder.WriteString("\n## Sub-questions\n")
		for i, sub := range subQuestions {
			builder.WriteString(fmt.Sprintf("(%d) %s\n", i+1, sub))
		}
	}

	if modelAnswer := sanitizeForPrompt(criteria.ModelAnswer); modelAnswer != "" {
		builder.WriteString("\n## Model Answer\n")
		builder.WriteString(modelAnswer)
		builder.WriteString("\n")
	}

	if intention := sanitizeForPrompt(criteria.GradingIntention); intention != "" {
		builder.WriteString("\n## Grading Intention\n")
		builder.WriteString(intention)
		builder.WriteString("\n")
	}

	builder.WriteString("\n## Candidate Answer\n")
	builder.WriteString(sanitizeForPrompt(criteria.AnswerText))
	builder.WriteString("\n")

	builder.WriteString("\n## Scoring Aspects\n")
	for i, aspect := range criteria.ScoringAspects {
		builder.WriteString(fmt.Sprintf("%d. %s (0-%s)\n", i+1, aspect, formatNumber(aspectMax)))
	}

	builder.WriteString("\n## Requirements\n")
	builder.WriteString("1. State a concrete reason for every aspect score.\n")
	builder.WriteString("2. Explain each deduction in detail.\n")
	builder.WriteString("3. Separate strengths from points that need improvement.\n")
	builder.WriteString("4. Quote the part of the answer each judgement is based on.\n")
	builder.WriteString("5. Structure the analysis so a second-pass reviewer can decide quickly.\n")

	builder.WriteString("\n## Output Format\n")
	builder.WriteString("Respond with a single JSON object and nothing else, using exactly this shape:\n")
	builder.WriteString(responseSkeleton(criteria, aspectMax))
	builder.WriteString("\nWrite the free-text fields in the language of the candidate answer.")
	return builder.String()
}

func responseSkeleton(criteria ScoringCriteria, aspectMax float64) string {
	maxLabel := formatNumber(aspectMax)
	builder := strings.Builder{}
	builder.WriteString("{\n")
	builder.WriteString(fmt.Sprintf("  \"total_score\": <number 0-%s>,\n", formatNumber(criteria.MaxScore)))
	builder.WriteString("  \"aspect_scores\": {\n")
	for i, aspect := range criteria.ScoringAspects {
		builder.WriteString(fmt.Sprintf("    %q: <number 0-%s>", aspect, maxLabel))
		builder.WriteString(trailingComma(i, len(criteria.ScoringAspects)))
	}
	builder.WriteString("  },\n")
	builder.WriteString("  \"detailed_analysis\": {\n")
	builder.WriteString("    \"strengths\": [\"<strength>\"],\n")
	builder.WriteString("    \"weaknesses\": [\"<weakness>\"],\n")
	builder.WriteString("    \"missing_elements\": [\"<missing element>\"],\n")
	builder.WriteString("    \"specific_issues\": [\"<specific issue>\"]\n")
	builder.WriteString("  },\n")
	builder.WriteString("  \"aspect_reasoning\": {\n")
	for i, aspect := range criteria.ScoringAspects {
		builder.WriteString(fmt.Sprintf("    %q: {\"score\": <number 0-%s>, \"reasoning\": \"<why>\", \"evidence\": \"<quoted excerpt>\", \"deduction_points\": \"<deductions, if any>\"}", aspect, maxLabel))
		builder.WriteString(trailingComma(i, len(criteria.ScoringAspects)))
	}
	builder.WriteString("  },\n")
	builder.WriteString("  \"improvement_suggestions\": [\"<suggestion>\"],\n")
	builder.WriteString("  \"confidence\": <number 0.0-1.0>,\n")
	builder.WriteString("  \"confidence_reasoning\": \"<why you are this confident>\",\n")
	builder.WriteString("  \"overall_reasoning\": \"<overall justification and advice for the reviewer>\",\n")
	builder.WriteString("  \"attention_points\": [\"<what the reviewer should double-check>\"]\n")
	builder.WriteString("}\n")
	return builder.String()
}

func trailingComma(index, total int) string {
	if index < total-1 {
		return ",\n"
	}
	return "\n"
}

func formatNumber(value float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".")
}
