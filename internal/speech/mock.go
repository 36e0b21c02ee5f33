package speech

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/lectiolabs/lectio-core/internal/config"
)

// mockSynth returns silence sized to the estimated narration length of
// the input text, for tests and dry runs.
type mockSynth struct {
	sampleRate int
	channels   int
	delay      time.Duration
}

func NewMockSynth(cfg config.SpeechConfig) Synthesizer {
	return &mockSynth{sampleRate: cfg.SampleRate, channels: cfg.Channels, delay: 5 * time.Millisecond}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.delay):
	}
	// one sixteenth of a second of audio per character, matching the
	// duration estimate used at parse time
	chars := utf8.RuneCountInString(req.Text)
	samples := chars * m.sampleRate / 16 * m.channels
	if samples == 0 {
		samples = m.sampleRate / 100
	}
	return make([]byte, samples*2), nil
}
