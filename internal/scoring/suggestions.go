package scoring

const (
	suggestionThreshold      = 60.0
	overallSuggestionCeiling = 50.0
)

var methodSuggestions = map[string][]string{
	MethodRuleBased: {
		"Work more of the expected keywords into the answer.",
		"Keep the answer within the character limit.",
	},
	MethodSemantic: {
		"Align the content more closely with the intent of the question.",
		"Structure the answer so the reasoning flows logically.",
	},
	MethodComprehensive: {
		"Strengthen the project management perspective.",
		"Add more practical and concrete measures.",
	},
}

const overallSuggestion = "Use the model answer as a reference and aim for a more comprehensive response."

// buildSuggestions adds the method-scoped advice for every method under 60% and one overall
// note when the three-method average is under 50%.
func buildSuggestions(rule, semantic, comprehensive float64) []string {
	suggestions := make([]string, 0, 7)
	for _, entry := range []struct {
		method     string
		percentage float64
	}{
		{MethodRuleBased, rule},
		{MethodSemantic, semantic},
		{MethodComprehensive, comprehensive},
	} {
		if entry.percentage < suggestionThreshold {
			suggestions = append(suggestions, methodSuggestions[entry.method]...)
		}
	}
	if (rule+semantic+comprehensive)/3 < overallSuggestionCeiling {
		suggestions = append(suggestions, overallSuggestion)
	}
	return suggestions
}
