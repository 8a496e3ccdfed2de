package llm

import "strings"

// chatPreamble frames the assistant's role for the support widget.
const chatPreamble = `You are a helpful customer support assistant for an online store.
Answer concisely. When the conversation context below mentions corrections,
use the corrected values and never repeat the corrected-away ones.`

// BuildChatPrompt assembles the completion prompt for one chat turn. The
// context summary from the metadata engine is spliced in verbatim; an empty
// summary omits the context block entirely.
func BuildChatPrompt(contextSummary, userMessage string) string {
	var b strings.Builder
	b.WriteString(chatPreamble)
	b.WriteString("\n\n")

	if strings.TrimSpace(contextSummary) != "" {
		b.WriteString("Conversation context:\n")
		b.WriteString(contextSummary)
		b.WriteString("\n")
	}

	b.WriteString("Customer: ")
	b.WriteString(userMessage)
	b.WriteString("\nAssistant:")
	return b.String()
}
