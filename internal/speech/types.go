package speech

import (
	"context"
	"fmt"
)

// Settings are the narration controls applied to every synthesis call.
// They are immutable once constructed; changes take effect on the next
// call, never mid-chunk.
type Settings struct {
	// Pitch ranges -2 (deep) to +2 (high), 0 is natural.
	Pitch float64
	// Speed ranges 0.5 (slow) to 2.0 (fast), 1.0 is natural.
	Speed float64
	// DialogueMode keeps short lines separate during chunking.
	DialogueMode bool
	// AutoOptimize runs the text optimizer before synthesis.
	AutoOptimize bool
}

// NewSettings validates ranges at construction.
func NewSettings(pitch, speed float64, dialogueMode, autoOptimize bool) (Settings, error) {
	if pitch < -2 || pitch > 2 {
		return Settings{}, fmt.Errorf("pitch %.2f out of range [-2, 2]", pitch)
	}
	if speed < 0.5 || speed > 2.0 {
		return Settings{}, fmt.Errorf("speed %.2f out of range [0.5, 2.0]", speed)
	}
	return Settings{Pitch: pitch, Speed: speed, DialogueMode: dialogueMode, AutoOptimize: autoOptimize}, nil
}

// DefaultSettings is natural pitch and pace with no extras.
func DefaultSettings() Settings {
	return Settings{Pitch: 0, Speed: 1.0}
}

// Voice identifies one provider voice and how to describe it in prompts.
type Voice struct {
	ID            string
	Name          string
	ProviderVoice string
	Gender        string
	Accent        string
	Language      string
}

// Request is one synthesis call: a single provider-safe text slice plus
// the voice and narration settings to render it with.
type Request struct {
	Text     string
	Voice    Voice
	Settings Settings
	Language string
}

// Synthesizer is the contract for producing raw PCM audio from text.
// Implementations return 16-bit little-endian mono samples at the
// configured sample rate.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

var voiceCatalog = []Voice{
	{ID: "es-narrator-deep", Name: "Mateo", ProviderVoice: "Charon", Gender: "male", Accent: "España (Neutro)", Language: "es"},
	{ID: "es-narrator-warm", Name: "Lucía", ProviderVoice: "Kore", Gender: "female", Accent: "España (Neutro)", Language: "es"},
	{ID: "es-youthful", Name: "Dani", ProviderVoice: "Puck", Gender: "male", Accent: "España (Juvenil)", Language: "es"},
	{ID: "es-professional", Name: "Álvaro", ProviderVoice: "Fenrir", Gender: "male", Accent: "España (Profesional)", Language: "es"},
	{ID: "es-friendly", Name: "Carmen", ProviderVoice: "Zephyr", Gender: "female", Accent: "España (Amable)", Language: "es"},
	{ID: "en-narrator-deep", Name: "Arthur", ProviderVoice: "Charon", Gender: "male", Accent: "British", Language: "en"},
	{ID: "en-narrator-warm", Name: "Grace", ProviderVoice: "Kore", Gender: "female", Accent: "American", Language: "en"},
	{ID: "en-youthful", Name: "Robin", ProviderVoice: "Puck", Gender: "male", Accent: "British", Language: "en"},
	{ID: "en-professional", Name: "Hunter", ProviderVoice: "Fenrir", Gender: "male", Accent: "American", Language: "en"},
	{ID: "en-friendly", Name: "Willow", ProviderVoice: "Zephyr", Gender: "female", Accent: "British", Language: "en"},
}

// Voices lists the catalog for one language.
func Voices(language string) []Voice {
	var out []Voice
	for _, v := range voiceCatalog {
		if v.Language == language {
			out = append(out, v)
		}
	}
	return out
}

// VoiceByID looks up a catalog voice.
func VoiceByID(id string) (Voice, bool) {
	for _, v := range voiceCatalog {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// DefaultVoice returns the first catalog voice for a language.
func DefaultVoice(language string) Voice {
	voices := Voices(language)
	if len(voices) == 0 {
		return voiceCatalog[0]
	}
	return voices[0]
}
