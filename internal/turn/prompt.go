package turn

import (
	"strings"

	"github.com/hubenschmidt/voicebridge/internal/session"
)

const historyWindow = 10

// buildPrompt linearizes the persona system block, an optional relevant-
// context block, the last historyWindow non-system turns, and the new user
// utterance, terminated with "Assistant:" awaiting the reply.
func buildPrompt(sess *session.Session, userText string) string {
	var b strings.Builder

	for _, t := range sess.ConversationHistory {
		if t.Role == session.RoleSystem && !session.IsRelevantContextSystemEntry(t.Text) {
			b.WriteString(t.Text)
			b.WriteString("\n\n")
			break
		}
	}
	for _, t := range sess.ConversationHistory {
		if t.Role == session.RoleSystem && session.IsRelevantContextSystemEntry(t.Text) {
			b.WriteString(t.Text)
			b.WriteString("\n\n")
			break
		}
	}

	for _, t := range sess.RecentHistory(historyWindow) {
		switch t.Role {
		case session.RoleUser:
			b.WriteString("User: ")
			b.WriteString(t.Text)
			b.WriteString("\n")
		case session.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(t.Text)
			b.WriteString("\n")
		}
	}

	b.WriteString("User: ")
	b.WriteString(userText)
	b.WriteString("\nAssistant:")
	return b.String()
}

func buildRelevantContextBlock(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant context:\n")
	for _, c := range chunks {
		b.WriteString(c)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
