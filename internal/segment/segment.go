package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lectiolabs/lectio-core/internal/config"
)

// Section is one logical part of a parsed document: a chapter heading and
// the prose that follows it, before any generation state is attached.
type Section struct {
	Title   string
	Content string
}

// CharCount reports the content length in runes, the unit every size knob
// in SegmenterConfig is expressed in.
func (s Section) CharCount() int {
	return utf8.RuneCountInString(s.Content)
}

// EstimateDurationSec approximates narration length from character count.
// The divisor matches observed narration speed of the provider voices.
func EstimateDurationSec(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return (charCount + 15) / 16
}

var headingPattern = regexp.MustCompile(`(?i)^(#{1,3}\s+|cap[íi]tulo\s+|chapter\s+|parte\s+|part\s+|documento\s+|document\s+)(.+)`)

// isHeading reports whether a line starts a new section. Markdown-style
// hashes and chapter keywords in Spanish or English count, as does a short
// all-uppercase line containing at least one letter.
func isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if headingPattern.MatchString(trimmed) {
		return true
	}
	n := utf8.RuneCountInString(trimmed)
	if n < 4 || n > 80 {
		return false
	}
	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			hasLetter = true
		}
	}
	return hasLetter
}

// Parse splits raw document text into ordered sections at heading
// boundaries. Lines between headings accumulate into the pending section;
// an all-whitespace body is never emitted. When no heading is found the
// whole document becomes a single section under fallbackTitle. Sections
// whose body exceeds the long-audio threshold are split into
// "<title> (Part N)" pieces at word boundaries.
func Parse(text, fallbackTitle string, cfg config.SegmenterConfig) []Section {
	var sections []Section
	push := func(title, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		sections = append(sections, Section{Title: title, Content: content})
	}

	currentTitle := fallbackTitle
	var buffer []string
	for _, line := range strings.Split(text, "\n") {
		if isHeading(line) {
			if len(buffer) > 0 {
				push(currentTitle, strings.Join(buffer, "\n"))
			}
			currentTitle = strings.TrimSpace(line)
			buffer = buffer[:0]
			continue
		}
		buffer = append(buffer, line)
	}
	if len(buffer) > 0 {
		push(currentTitle, strings.Join(buffer, "\n"))
	}
	if len(sections) == 0 && strings.TrimSpace(text) != "" {
		push(fallbackTitle, text)
	}

	if cfg.LongAudioThreshold > 0 {
		sections = splitOversized(sections, cfg.LongAudioThreshold)
	}
	return sections
}

func splitOversized(sections []Section, threshold int) []Section {
	out := make([]Section, 0, len(sections))
	for _, sec := range sections {
		runes := []rune(sec.Content)
		if len(runes) <= threshold {
			out = append(out, sec)
			continue
		}
		parts := splitEven(runes, threshold)
		for i, part := range parts {
			out = append(out, Section{
				Title:   fmt.Sprintf("%s (Part %d)", sec.Title, i+1),
				Content: strings.TrimSpace(string(part)),
			})
		}
	}
	return out
}

// splitEven cuts the text into ceil(len/threshold) consecutive parts of
// roughly equal size. Each cut point is moved backward to the nearest
// space so words stay whole; the exact offset is a last resort for text
// with no spaces at all.
func splitEven(runes []rune, threshold int) [][]rune {
	total := len(runes)
	numParts := (total + threshold - 1) / threshold
	target := (total + numParts - 1) / numParts

	var parts [][]rune
	start := 0
	for start < total {
		end := start + target
		if end >= total {
			parts = append(parts, runes[start:total])
			break
		}
		cut := end
		for cut > start && !unicode.IsSpace(runes[cut]) {
			cut--
		}
		if cut == start {
			cut = end
		}
		parts = append(parts, runes[start:cut])
		start = cut
	}
	return parts
}
