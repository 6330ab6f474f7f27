package turn

import "strings"

const (
	secondaryFlushMinLen   = 50
	secondaryFlushMinWords = 8
	secondaryFlushLimit    = 100
)

// findFlushBoundary looks for a flush point in buf per the two-branch rule:
// a sentence-terminating punctuation mark followed by whitespace flushes
// everything up to and including it; failing that, a long enough buffer
// flushes at the last space before position 100. Returns the end of the
// fragment to flush and the start of what remains in the buffer.
func findFlushBoundary(buf string) (fragmentEnd, remainderStart int, ok bool) {
	for i := 0; i < len(buf)-1; i++ {
		c := buf[i]
		if (c == '.' || c == '!' || c == '?') && isSpace(buf[i+1]) {
			return i + 1, i + 1, true
		}
	}

	if len(buf) > secondaryFlushMinLen && wordCount(buf) >= secondaryFlushMinWords {
		limit := secondaryFlushLimit
		if limit > len(buf) {
			limit = len(buf)
		}
		if idx := strings.LastIndex(buf[:limit], " "); idx > 0 {
			return idx, idx + 1, true
		}
	}
	return 0, 0, false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// drainFragments repeatedly applies findFlushBoundary to buf, returning the
// ready-to-synthesize fragments in order and the leftover buffer content.
func drainFragments(buf string) (fragments []string, remainder string) {
	for {
		end, start, ok := findFlushBoundary(buf)
		if !ok {
			return fragments, buf
		}
		fragment := strings.TrimSpace(buf[:end])
		buf = buf[start:]
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	}
}
