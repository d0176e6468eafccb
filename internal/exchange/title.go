package exchange

import "strings"

// titleBudget is the display-length budget for conversation titles.
const titleBudget = 30

// placeholderTitles count as "no real title yet".
var placeholderTitles = map[string]bool{
	"":                      true,
	"untitled conversation": true,
	"new conversation":      true,
}

// maybeRetitle keeps a real title unchanged; otherwise it derives one
// from the prompt, truncated to the display budget with a trailing
// ellipsis marker. Truncation counts runes so a multi-byte codepoint is
// never cut in half.
func maybeRetitle(current, prompt string) string {
	if !placeholderTitles[strings.ToLower(strings.TrimSpace(current))] {
		return current
	}

	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return current
	}

	runes := []rune(trimmed)
	if len(runes) <= titleBudget {
		return trimmed
	}
	return string(runes[:titleBudget-3]) + "..."
}
