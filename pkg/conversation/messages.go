package conversation

// User-facing texts
const (
	greetingText        = "Hi! Send me a feature description and I will write test cases for it ✍️"
	helpText            = "Send a feature description as a plain message. I will reply with a preview of manual test cases, which you can export to DOCX or PDF, read in full, or turn into autotest code.\n\n/start shows the greeting again."
	emptyFeatureText    = "Please describe the feature in a text message ✍️"
	analyzingText       = "Analyzing the feature and generating tests... 🧠⏳"
	storeFailedText     = "⚠️ Could not save the generated tests. Please try again."
	previewHeader       = "**Here is a preview of the generated manual tests:**\n\n"
	previewEllipsis     = "\n\n..."
	nextActionText      = "🔽 Choose the next action:"
	chooseLanguageText  = "Choose a language for the autotest:"
	generatingText      = "Generating %s autotest... 🤖⏳"
	codeFallbackText    = "Could not format the code, sending it as plain text:"
	codePartHeader      = "Autotest code (part %d/%d):\n"
	autotestDoneText    = "Autotest generated."
	newFeatureText      = "Great! Waiting for the next feature description. Just send it to the chat ✍️"
	sessionExpiredText  = "Session expired, please start over."
	exportFailedText    = "⚠️ Could not create the file. Please try again."
	unsupportedLangText = "This language is not supported."
)
