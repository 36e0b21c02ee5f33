// Package optimize rewrites text for smoother narration before it is
// sent to the speech provider: abbreviations expanded, numbers spelled
// out, punctuation adjusted for natural pauses. Rewriting is best
// effort; any failure falls back to the original text so a generation
// run never stalls on the rewriter.
package optimize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lectiolabs/lectio-core/internal/config"
)

// Rewriter is a pluggable text rewriting backend.
type Rewriter interface {
	Rewrite(ctx context.Context, text, language string) (string, error)
}

// FromConfig builds the rewriter selected by the optimizer and speech
// settings. A disabled optimizer yields a pass-through rewriter.
func FromConfig(cfg config.Config, logger *slog.Logger) Rewriter {
	if !cfg.Optimizer.Enabled {
		return NewNoopRewriter()
	}
	if cfg.Speech.Mode != "gemini" {
		return NewMockRewriter()
	}
	return NewGeminiRewriter(cfg.Optimizer, cfg.Speech, logger)
}

type noopRewriter struct{}

// NewNoopRewriter returns text unchanged.
func NewNoopRewriter() Rewriter { return &noopRewriter{} }

func (noopRewriter) Rewrite(ctx context.Context, text, language string) (string, error) {
	return text, nil
}

// splitParagraphChunks groups paragraphs into chunks of at most limit
// characters. Paragraphs longer than the limit become their own chunk
// rather than being cut mid-sentence.
func splitParagraphChunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	for _, p := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' }) {
		if current.Len() > 0 && current.Len()+len(p) >= limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
