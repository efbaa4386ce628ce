package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker vocabularies. Answers are mostly Japanese; the English entries cover answers written
// in English.
var (
	sentenceMarkers = []string{"、", "。"}

	causalMarkers = []string{
		"ため", "により", "によって", "原因", "理由", "結果", "したがって", "そのため", "なので", "ので",
		"because", "due to", "therefore", "as a result", "consequently", "caused by", "since", "so that",
	}

	technicalTerms = []string{
		"プロジェクト", "システム", "開発", "設計", "要件", "テスト", "品質", "リスク", "マネジメント",
		"工程", "レビュー", "検証",
		"project", "system", "development", "design", "requirement", "test", "quality", "risk",
		"management", "review", "verification",
	}

	logicalConnectives = []string{
		"ため", "により", "したがって", "そのため", "結果",
		"because", "therefore", "as a result", "thus", "hence",
	}

	negationMarkers = []string{"ない", "しない", "not ", "n't", "never", "without"}

	concretenessMarkers = []string{
		"具体的", "例えば",
		"specifically", "for example", "for instance", "such as",
	}

	pmTerms = []string{
		"プロジェクト", "マネジメント", "ステークホルダー", "リスク", "スケジュール", "品質", "コスト",
		"スコープ", "要件", "工程", "フェーズ", "マイルストーン", "レビュー",
		"project", "stakeholder", "risk", "schedule", "quality", "cost", "scope", "requirement",
		"phase", "milestone", "review",
	}

	managementExpressions = []string{
		"管理", "計画", "統制", "監視", "制御", "調整", "予防", "対策", "改善", "最適化",
		"manage", "plan", "control", "monitor", "coordinate", "prevent", "countermeasure", "improve",
	}

	problemSolvingMarkers = []string{
		"原因", "要因", "解決", "対応", "改善", "防止",
		"root cause", "cause", "resolve", "solution", "address", "mitigate",
	}

	practicalMarkers = []string{
		"具体的", "明確", "詳細", "例えば", "実際に", "現実的", "実用的", "実践的",
		"specific", "clear", "detailed", "for example", "in practice", "realistic", "practical",
	}

	implementationTerms = []string{
		"実施", "実行", "導入", "適用", "運用", "活用",
		"implement", "execute", "introduce", "apply", "operate", "deploy", "roll out",
	}

	quantitativeMarkers = []string{
		"時間", "工数", "コスト", "期間", "工期", "人数", "頻度", "回数", "割合", "率",
		"hours", "days", "weeks", "effort", "cost", "budget", "duration", "headcount", "frequency", "%",
	}

	sentenceEndings = []string{"。", "．", ".", "!", "?", "！", "？"}

	japaneseSubjectParticles = []string{"が", "は"}
	japanesePredicateEndings = []string{"た", "る"}
	englishPredicates        = []string{" is ", " are ", " was ", " were ", " will ", " should ", " must ", " can "}
)

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func containsAny(text string, markers []string) bool {
	return countMarkers(text, markers) > 0
}

// countMarkers counts distinct markers present in text; text must already be normalized.
func countMarkers(text string, markers []string) int {
	count := 0
	for _, marker := range markers {
		if marker != "" && strings.Contains(text, marker) {
			count++
		}
	}
	return count
}

func endsWithAny(text string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(text, suffix) {
			return true
		}
	}
	return false
}

func runeCount(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r)
}

// tokenSet splits text into comparable units: every CJK character is a token of its own, other
// letters and digits form lower-cased words. Punctuation and whitespace are dropped.
func tokenSet(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens[word.String()] = struct{}{}
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case isCJK(r):
			flush()
			tokens[string(r)] = struct{}{}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// coverage is the share of reference tokens that also occur in candidate.
func coverage(candidate, reference map[string]struct{}) float64 {
	if len(candidate) == 0 || len(reference) == 0 {
		return 0
	}
	shared := 0
	for token := range reference {
		if _, ok := candidate[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(reference))
}
