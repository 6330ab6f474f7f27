package kb

import "strings"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// ChunkText splits text into greedy overlapping windows of size chars with
// overlap carried into the next window, snapping the window end to the
// last '.' or paragraph break within the window when that boundary falls
// past the halfway point. The next window always starts strictly after the
// current one's start, guaranteeing termination regardless of size/overlap.
func ChunkText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size < 1 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}

		window := text[start:end]
		if cut := lastSnapBoundary(window); cut >= 0 && cut > len(window)/2 {
			end = start + cut
		}
		chunks = append(chunks, text[start:end])

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// lastSnapBoundary returns the index just past the last '.' or '\n\n'
// within s, or -1 if neither is present.
func lastSnapBoundary(s string) int {
	best := -1
	if idx := strings.LastIndex(s, "\n\n"); idx >= 0 {
		best = idx + 2
	}
	if idx := strings.LastIndex(s, "."); idx >= 0 && idx+1 > best {
		best = idx + 1
	}
	return best
}
