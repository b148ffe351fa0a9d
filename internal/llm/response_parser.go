package llm

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// MaxNarrativeRunes bounds a model narrative.
const MaxNarrativeRunes = 600

// narrativeReply is the shape some models answer in despite being asked for
// plain text.
type narrativeReply struct {
	Summary   string `json:"summary"`
	Narrative string `json:"narrative"`
	Text      string `json:"text"`
}

var narrativeLabels = []string{"summary:", "improved summary:", "narrative:"}

// ParseNarrative turns a model reply into narrative text. It unwraps code
// fences and JSON objects, drops a leading label and wrapping quotes, folds
// whitespace, and truncates to MaxNarrativeRunes at a sentence boundary when
// possible. It returns "" when nothing usable remains.
func ParseNarrative(reply string) string {
	text := strings.TrimSpace(reply)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") {
		var r narrativeReply
		if err := json.Unmarshal([]byte(extractJSON(text)), &r); err == nil {
			switch {
			case r.Summary != "":
				text = r.Summary
			case r.Narrative != "":
				text = r.Narrative
			default:
				text = r.Text
			}
		}
	}

	lower := strings.ToLower(text)
	for _, label := range narrativeLabels {
		if strings.HasPrefix(lower, label) {
			text = text[len(label):]
			break
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	text = strings.Trim(text, "\"'")
	text = strings.TrimSpace(text)

	return truncateNarrative(text, MaxNarrativeRunes)
}

// truncateNarrative cuts s to at most max runes, preferring the last full
// sentence that fits.
func truncateNarrative(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max])
	if i := strings.LastIndexAny(cut, ".!?"); i > 0 {
		return cut[:i+1]
	}
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}

// extractJSON returns the first balanced JSON object in text, or text
// unchanged when there is none.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}
