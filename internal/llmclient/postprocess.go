package llmclient

import (
	"regexp"
	"strings"
)

const maxReplyChars = 300

var (
	boldRe     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe   = regexp.MustCompile(`\*(.+?)\*`)
	inlineCode = regexp.MustCompile("`([^`]+)`")
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	linkRe     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
)

// StripMarkdown removes the markdown artifacts a spoken reply shouldn't
// carry: bold/italic emphasis, inline code backticks, heading markers, and
// link syntax (keeping only the link text).
func StripMarkdown(text string) string {
	text = linkRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	return text
}

// TruncateSentence shortens text to at most maxReplyChars, preferring to
// cut at the last sentence-terminating punctuation within the limit; if
// none exists, it cuts at the last space, and failing that, hard-truncates.
func TruncateSentence(text string) string {
	if len(text) <= maxReplyChars {
		return text
	}
	window := text[:maxReplyChars]

	if idx := lastSentenceBoundary(window); idx >= 0 {
		return strings.TrimSpace(window[:idx+1])
	}
	if idx := strings.LastIndex(window, " "); idx >= 0 {
		return strings.TrimSpace(window[:idx])
	}
	return window
}

func lastSentenceBoundary(s string) int {
	best := -1
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			best = i
		}
	}
	return best
}

// EnsureTerminalPunctuation appends a period if text doesn't already end in
// sentence-terminating punctuation.
func EnsureTerminalPunctuation(text string) string {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return trimmed
	}
	last := trimmed[len(trimmed)-1]
	if last == '.' || last == '!' || last == '?' {
		return trimmed
	}
	return trimmed + "."
}

// NormalizeForSpeech applies the full post-processing pipeline the turn
// pipeline runs over an assembled assistant reply before it is spoken.
func NormalizeForSpeech(text string) string {
	text = StripMarkdown(text)
	text = TruncateSentence(text)
	text = EnsureTerminalPunctuation(text)
	return strings.TrimSpace(text)
}
