package title

import "strings"

// Clean normalizes a generated title: whitespace trimmed, internal
// newlines flattened to spaces, one matching pair of surrounding quotes
// removed, and the result truncated to maxLength.
func Clean(title string, maxLength int) string {
	if title == "" {
		return ""
	}

	cleaned := strings.TrimSpace(title)
	cleaned = strings.Join(strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == '\n' || r == '\r'
	}), " ")

	if len(cleaned) >= 2 {
		first, last := cleaned[0], cleaned[len(cleaned)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			cleaned = cleaned[1 : len(cleaned)-1]
		}
	}

	return TruncateAtWordBoundary(cleaned, maxLength)
}

// TruncateAtWordBoundary shortens text to at most maxLength characters,
// appending "...". The cut prefers the last space, but only when it falls
// past 60% of the limit; otherwise the text is cut hard to leave room for
// the ellipsis.
func TruncateAtWordBoundary(text string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	truncated := string(runes[:maxLength])
	lastSpace := strings.LastIndex(truncated, " ")

	if float64(lastSpace) > float64(maxLength)*0.6 {
		return truncated[:lastSpace] + "..."
	}

	return string([]rune(truncated)[:maxLength-3]) + "..."
}
