package speech

import (
	"fmt"
	"strings"
)

// toneInstruction maps the pitch scalar onto one of five discrete tone
// bands the provider responds to reliably.
func toneInstruction(pitch float64, language string) string {
	if language == "es" {
		switch {
		case pitch <= -1.5:
			return "TONO: EXTREMADAMENTE GRAVE. Voz muy profunda, seria y resonante."
		case pitch < 0:
			return "TONO: GRAVE. Voz más profunda de lo habitual."
		case pitch == 0:
			return "TONO: NATURAL. Voz equilibrada y estándar."
		case pitch <= 1.5:
			return "TONO: AGUDO. Voz brillante y ligera."
		default:
			return "TONO: MUY AGUDO. Voz juvenil y alta."
		}
	}
	switch {
	case pitch <= -1.5:
		return "PITCH: VERY DEEP. Low, resonant, and serious voice."
	case pitch < 0:
		return "PITCH: LOW. Deeper than normal."
	case pitch == 0:
		return "PITCH: NATURAL. Balanced standard voice."
	case pitch <= 1.5:
		return "PITCH: HIGH. Bright and light voice."
	default:
		return "PITCH: VERY HIGH. Youthful and high-pitched."
	}
}

// paceInstruction maps the speed scalar onto seven pace bands, from
// extremely slow to extreme.
func paceInstruction(speed float64, language string) string {
	if language == "es" {
		switch {
		case speed <= 0.6:
			return "VELOCIDAD: EXTREMADAMENTE LENTA. Habla muy despacio, separando cada sílaba. Pausas largas."
		case speed <= 0.8:
			return "VELOCIDAD: LENTA. Habla pausadamente y con calma."
		case speed < 1.0:
			return "VELOCIDAD: RELAJADA. Un poco más despacio de lo normal."
		case speed == 1.0:
			return "VELOCIDAD: NORMAL. Ritmo de conversación natural."
		case speed <= 1.3:
			return "VELOCIDAD: RÁPIDA. Habla con agilidad y dinamismo."
		case speed <= 1.6:
			return "VELOCIDAD: MUY RÁPIDA. Habla de forma acelerada."
		default:
			return "VELOCIDAD: EXTREMA. Habla lo más rápido posible, como si tuvieras mucha prisa."
		}
	}
	switch {
	case speed <= 0.6:
		return "SPEED: EXTREMELY SLOW. Speak very slowly, enunciating every syllable. Long pauses."
	case speed <= 0.8:
		return "SPEED: SLOW. Speak calmly and take your time."
	case speed < 1.0:
		return "SPEED: RELAXED. Slightly slower than normal."
	case speed == 1.0:
		return "SPEED: NORMAL. Natural conversational pace."
	case speed <= 1.3:
		return "SPEED: FAST. Agile and dynamic speaking."
	case speed <= 1.6:
		return "SPEED: VERY FAST. Accelerated speech."
	default:
		return "SPEED: EXTREME. Speak as fast as possible, in a rush."
	}
}

// buildPrompt assembles the natural-language instruction payload sent to
// the provider: role, language, accent, tone and pace bands, then the
// literal text to render. Instructions come first so the model applies
// them before reading.
func buildPrompt(req Request) string {
	languageName := "English"
	if req.Language == "es" {
		languageName = "Spanish (Spain)"
	}
	accent := req.Voice.Accent
	if accent == "" {
		accent = "Standard"
	}

	var b strings.Builder
	b.WriteString("[Role: Professional Voice Actor]\n")
	b.WriteString("[Task: Read the text below]\n\n")
	b.WriteString("[INSTRUCTIONS START]\n")
	fmt.Fprintf(&b, "1. Language: %s\n", languageName)
	fmt.Fprintf(&b, "2. Accent: %s\n", accent)
	fmt.Fprintf(&b, "3. %s\n", toneInstruction(req.Settings.Pitch, req.Language))
	fmt.Fprintf(&b, "4. %s\n", paceInstruction(req.Settings.Speed, req.Language))
	fmt.Fprintf(&b, "5. Voice Gender: %s\n", req.Voice.Gender)
	b.WriteString("[INSTRUCTIONS END]\n\n")
	b.WriteString("[TEXT TO READ START]\n")
	fmt.Fprintf(&b, "%q\n", req.Text)
	b.WriteString("[TEXT TO READ END]\n")
	return b.String()
}
