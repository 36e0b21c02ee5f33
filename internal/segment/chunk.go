package segment

import (
	"strings"
	"unicode"
)

// ChunkOptions tunes how section content is partitioned into
// provider-safe slices.
type ChunkOptions struct {
	// MaxChars is the provider-imposed ceiling per request, in runes.
	MaxChars int
	// Dialogue keeps short quoted or dashed lines as their own chunks
	// instead of packing them with surrounding prose.
	Dialogue bool
	// DialogueLineChars is the maximum length of a line still treated
	// as dialogue.
	DialogueLineChars int
}

// Chunks partitions content into ordered slices, each at most MaxChars
// runes. Concatenating the returned slices reproduces content exactly;
// cuts fall on paragraph, sentence or whitespace boundaries, with a hard
// cut only when a single run of text has no whitespace at all.
func Chunks(content string, opts ChunkOptions) []string {
	if content == "" {
		return nil
	}
	if opts.MaxChars <= 0 {
		return []string{content}
	}

	runes := []rune(content)
	if opts.Dialogue {
		return dialogueChunks(runes, opts)
	}
	return windowChunks(runes, opts.MaxChars)
}

func windowChunks(runes []rune, maxChars int) []string {
	var chunks []string
	start := 0
	for len(runes)-start > maxChars {
		cut := findCut(runes, start, start+maxChars)
		chunks = append(chunks, string(runes[start:cut]))
		start = cut
	}
	if start < len(runes) {
		chunks = append(chunks, string(runes[start:]))
	}
	return chunks
}

// findCut picks a cut offset in (start, limit]. Preference order:
// paragraph break, sentence end, any whitespace, then the hard limit.
// The cut always lands just after the boundary rune so neither side
// splits a word.
func findCut(runes []rune, start, limit int) int {
	lastSpace := -1
	lastSentence := -1
	lastParagraph := -1
	for i := start; i < limit; i++ {
		r := runes[i]
		if r == '\n' {
			if i > start && runes[i-1] == '\n' {
				lastParagraph = i + 1
			}
			lastSpace = i + 1
			continue
		}
		if unicode.IsSpace(r) {
			lastSpace = i + 1
			if i > start && isSentenceEnd(runes[i-1]) {
				lastSentence = i + 1
			}
		}
	}
	switch {
	case lastParagraph > start:
		return lastParagraph
	case lastSentence > start:
		return lastSentence
	case lastSpace > start:
		return lastSpace
	default:
		return limit
	}
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	default:
		return false
	}
}

// dialogueChunks cuts at line boundaries around short dialogue lines so
// each spoken line becomes its own request, then windows any oversized
// remainder the normal way.
func dialogueChunks(runes []rune, opts ChunkOptions) []string {
	var chunks []string
	var pending []rune

	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunks = append(chunks, windowChunks(pending, opts.MaxChars)...)
		pending = nil
	}

	start := 0
	for start < len(runes) {
		end := start
		for end < len(runes) && runes[end] != '\n' {
			end++
		}
		if end < len(runes) {
			end++ // keep the newline with its line
		}
		line := runes[start:end]
		if isDialogueLine(line, opts.DialogueLineChars) {
			flush()
			chunks = append(chunks, string(line))
		} else {
			if len(pending)+len(line) > opts.MaxChars {
				flush()
			}
			pending = append(pending, line...)
		}
		start = end
	}
	flush()
	return chunks
}

func isDialogueLine(line []rune, maxLen int) bool {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return false
	}
	if maxLen > 0 && len([]rune(trimmed)) > maxLen {
		return false
	}
	switch trimmed[0] {
	case '-', '"', '\'':
		return true
	}
	for _, prefix := range []string{"—", "«", "“"} { // em dash, guillemet, curly quote
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
