package conversation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var languageIcons = map[string]string{
	"python":     "🐍",
	"java":       "☕",
	"javascript": "🟨",
	"typescript": "🔷",
	"go":         "🐹",
	"kotlin":     "🟣",
	"csharp":     "🎯",
}

// MainKeyboard offers the actions available on manual tests
func MainKeyboard(sessionID string) Keyboard {
	return Keyboard{
		{
			{Text: "📄 DOCX", Action: ExportDocx{SessionID: sessionID}},
			{Text: "📑 PDF", Action: ExportPDF{SessionID: sessionID}},
		},
		{{Text: "📋 Show full text", Action: ShowFullManual{SessionID: sessionID}}},
		{{Text: "🤖 Generate autotest", Action: AutotestMenu{SessionID: sessionID}}},
		{{Text: "✅ New feature", Action: NewFeature{}}},
	}
}

// LanguageKeyboard offers the autotest languages, two per row, and a way back
func LanguageKeyboard(sessionID string, languages []string) Keyboard {
	var kb Keyboard
	var row []Button
	for _, lang := range languages {
		row = append(row, Button{
			Text:   languageLabel(lang),
			Action: GenerateAutotest{Language: lang, SessionID: sessionID},
		})
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	return append(kb, []Button{{Text: "⬅️ Back", Action: BackToManual{SessionID: sessionID}}})
}

// ResultKeyboard is shown after autotest delivery
func ResultKeyboard(sessionID string) Keyboard {
	return Keyboard{
		{{Text: "⬅️ Back to manual scenario", Action: BackToManual{SessionID: sessionID}}},
	}
}

func languageLabel(lang string) string {
	icon, ok := languageIcons[strings.ToLower(lang)]
	if !ok {
		icon = "💻"
	}
	return icon + " " + languageTitle(lang)
}

// languageTitle upper-cases the first letter: "python" -> "Python"
func languageTitle(lang string) string {
	r, size := utf8.DecodeRuneInString(lang)
	if r == utf8.RuneError {
		return lang
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(lang[size:])
}
