package chat

import "strings"

type intent int

const (
	intentAdvice intent = iota
	intentResources
	intentSerialHelp
	intentGeneral
)

// Keyword groups that route a text message. Resource words explicitly ask
// for tutorials, guides or parts; question words ask for advice; a short
// affirmation accepts the assistant's offer to search.
var (
	resourceKeywords = []string{
		"tutorial", "video", "guide", "parts", "where to buy", "search",
		"find parts", "show me", "youtube", "solutions", "repair",
	}
	affirmationKeywords = []string{
		"yes", "sure", "okay", "ok", "please", "go ahead", "find", "search",
	}
	questionKeywords = []string{
		"should", "worth", "cost", "how much", "buy new", "replace", "advice",
		"recommend", "what do you think", "opinion", "suggest", "?",
	}
	serialKeywords = []string{"serial", "model", "number", "label"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func classify(message string) intent {
	lower := strings.ToLower(message)

	wantsResources := containsAny(lower, resourceKeywords)
	isQuestion := containsAny(lower, questionKeywords)
	isAffirmation := containsAny(lower, affirmationKeywords) && len(strings.Fields(message)) <= 5

	switch {
	case isQuestion && !wantsResources:
		return intentAdvice
	case wantsResources || isAffirmation:
		return intentResources
	case containsAny(lower, serialKeywords):
		return intentSerialHelp
	default:
		return intentGeneral
	}
}

// adviceTopic maps a question to the short fact recorded in the session
// context, so later answers remember what was already covered.
func adviceTopic(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "cost") || strings.Contains(lower, "price"):
		return "repair costs"
	case strings.Contains(lower, "worth") || strings.Contains(lower, "buy new"):
		return "repair vs replace decision"
	case strings.Contains(lower, "how") && strings.Contains(lower, "fix"):
		return "repair steps"
	default:
		return ""
	}
}
