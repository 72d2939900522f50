package conversation

import (
	"html"
	"strings"
)

// SanitizeMarkdown separates a colon from a following bold marker and
// collapses empty bold pairs. The result is a fixed point.
func SanitizeMarkdown(text string) string {
	text = strings.ReplaceAll(text, ":**", ": **")
	for strings.Contains(text, "****") {
		text = strings.ReplaceAll(text, "****", "**")
	}
	return text
}

// SanitizeCode strips the ```language opening fence and the closing fence
// wrapped around generated code.
func SanitizeCode(code, language string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(code, "```"+language)
	code = strings.TrimSuffix(code, "```")
	return strings.TrimSpace(code)
}

var markdownV2Replacer = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`, "=", `\=`,
	"|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeMarkdownV2 escapes text outside of code entities
func escapeMarkdownV2(text string) string {
	return markdownV2Replacer.Replace(text)
}

var markdownV2CodeReplacer = strings.NewReplacer(`\`, `\\`, "`", "\\`")

// escapeMarkdownV2Code escapes text inside pre and code entities
func escapeMarkdownV2Code(text string) string {
	return markdownV2CodeReplacer.Replace(text)
}

// htmlCodeBlock wraps code in a pre/code block tagged with language
func htmlCodeBlock(code, language string) string {
	return `<pre><code class="language-` + html.EscapeString(language) + `">` +
		html.EscapeString(code) + "</code></pre>"
}
