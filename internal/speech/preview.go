package speech

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	previewTextES = "Hola, esta es una muestra de mi voz para tu audiolibro."
	previewTextEN = "Hello, this is a sample of my voice for your audiobook."
)

// PreviewCache serves short per-voice samples, caching results so
// browsing the voice catalog does not spend provider quota twice for the
// same voice and settings.
type PreviewCache struct {
	synth Synthesizer
	cache *lru.Cache[string, []byte]
}

func NewPreviewCache(synth Synthesizer, entries int) (*PreviewCache, error) {
	if entries <= 0 {
		entries = 16
	}
	cache, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	return &PreviewCache{synth: synth, cache: cache}, nil
}

func (p *PreviewCache) Preview(ctx context.Context, voice Voice, settings Settings, language string) ([]byte, error) {
	key := fmt.Sprintf("%s|%.2f|%.2f|%s", voice.ID, settings.Pitch, settings.Speed, language)
	if pcm, ok := p.cache.Get(key); ok {
		return pcm, nil
	}

	text := previewTextEN
	if language == "es" {
		text = previewTextES
	}
	pcm, err := p.synth.Synthesize(ctx, Request{Text: text, Voice: voice, Settings: settings, Language: language})
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, pcm)
	return pcm, nil
}
