package export

import "regexp"

// boldPattern matches a **bold** span on a single line, non-greedy
var boldPattern = regexp.MustCompile(`\*\*.*?\*\*`)

// span is a run of text with uniform emphasis
type span struct {
	Text string
	Bold bool
}

// splitBold splits text into plain and bold spans; bold markers are removed
func splitBold(text string) []span {
	var spans []span
	last := 0
	for _, loc := range boldPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			spans = append(spans, span{Text: text[last:loc[0]]})
		}
		spans = append(spans, span{Text: text[loc[0]+2 : loc[1]-2], Bold: true})
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, span{Text: text[last:]})
	}
	return spans
}
