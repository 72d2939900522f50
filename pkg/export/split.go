package export

import "unicode"

// SplitText splits text into chunks of at most limit runes. Each chunk ends
// before the last newline inside the window, or exactly at the limit when the
// window has none. Leading whitespace of the remainder is dropped.
func SplitText(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		cut := lastNewline(runes[:limit])
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, string(runes[:cut]))

		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	return chunks
}

func lastNewline(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '\n' {
			return i
		}
	}
	return -1
}
