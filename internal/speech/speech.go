// Package speech wraps the remote generative speech provider behind the
// Synthesizer interface, with mock and exec backends for offline use.
package speech

import (
	"fmt"
	"log/slog"

	"github.com/lectiolabs/lectio-core/internal/config"
)

// FromConfig builds the synthesizer selected by speech.mode.
func FromConfig(cfg config.SpeechConfig, logger *slog.Logger) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynth(cfg), nil
	case "exec":
		return NewExecSynth(cfg)
	case "gemini":
		return NewGeminiSynth(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown speech mode %q", cfg.Mode)
	}
}
