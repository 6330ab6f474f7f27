package kb

import (
	"sort"
	"strings"
	"unicode"
)

const minTokenLen = 2

// tokenize lowercases query and splits on whitespace, discarding tokens
// shorter than minTokenLen characters.
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func words(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordBoundaryMatchCount(content, token string) int {
	count := 0
	for _, w := range words(content) {
		if w == token {
			count++
		}
	}
	return count
}

// scoreChunk implements the deterministic scoring rule: sum of word-boundary
// match counts per query token, +5 if the full query phrase appears
// verbatim, +1 if the chunk starts with '#' or ends with ':'.
func scoreChunk(content string, tokens []string, phrase string) int {
	score := 0
	for _, t := range tokens {
		score += wordBoundaryMatchCount(content, t)
	}
	if phrase != "" && strings.Contains(strings.ToLower(content), phrase) {
		score += 5
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "#") || strings.HasSuffix(trimmed, ":") {
		score++
	}
	return score
}

// RelevantChunks scores every chunk against query and returns the top k
// texts, sorted by score descending with ties broken by ascending index in
// the input slice (the order chunks are stored/retrieved in).
func RelevantChunks(chunks []string, query string, k int) []string {
	tokens := tokenize(query)
	phrase := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		idx   int
		score int
	}
	var ranked []scored
	for i, c := range chunks {
		if s := scoreChunk(c, tokens, phrase); s > 0 {
			ranked = append(ranked, scored{idx: i, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].idx < ranked[j].idx
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = chunks[r.idx]
	}
	return out
}
