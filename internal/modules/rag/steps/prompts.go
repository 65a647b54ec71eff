package steps

import "strings"

const answerSystemPrompt = "You are a helpful assistant. Only answer using the provided context. " +
	"If the context does not contain enough info, say \"I don't have enough information.\""

func answerUserPrompt(question, context string) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
