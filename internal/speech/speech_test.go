package speech

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lectiolabs/lectio-core/internal/config"
)

func TestNewSettingsBounds(t *testing.T) {
	if _, err := NewSettings(-2, 0.5, false, false); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
	if _, err := NewSettings(2.1, 1.0, false, false); err == nil {
		t.Fatal("expected pitch out of range")
	}
	if _, err := NewSettings(0, 0.4, false, false); err == nil {
		t.Fatal("expected speed out of range")
	}
	if _, err := NewSettings(0, 2.5, false, false); err == nil {
		t.Fatal("expected speed out of range")
	}
}

func TestToneBands(t *testing.T) {
	cases := []struct {
		pitch float64
		want  string
	}{
		{-2, "VERY DEEP"},
		{-1.5, "VERY DEEP"},
		{-1, "LOW"},
		{0, "NATURAL"},
		{1, "HIGH"},
		{1.5, "HIGH"},
		{2, "VERY HIGH"},
	}
	for _, tc := range cases {
		got := toneInstruction(tc.pitch, "en")
		if !strings.Contains(got, tc.want) {
			t.Errorf("toneInstruction(%.1f) = %q, want band %q", tc.pitch, got, tc.want)
		}
	}
	if got := toneInstruction(0, "es"); !strings.Contains(got, "TONO: NATURAL") {
		t.Errorf("spanish tone band: %q", got)
	}
}

func TestPaceBands(t *testing.T) {
	cases := []struct {
		speed float64
		want  string
	}{
		{0.5, "EXTREMELY SLOW"},
		{0.7, "SLOW"},
		{0.9, "RELAXED"},
		{1.0, "NORMAL"},
		{1.2, "FAST"},
		{1.5, "VERY FAST"},
		{2.0, "EXTREME"},
	}
	for _, tc := range cases {
		got := paceInstruction(tc.speed, "en")
		if !strings.Contains(got, "SPEED: "+tc.want) {
			t.Errorf("paceInstruction(%.1f) = %q, want band %q", tc.speed, got, tc.want)
		}
	}
	if got := paceInstruction(1.0, "es"); !strings.Contains(got, "VELOCIDAD: NORMAL") {
		t.Errorf("spanish pace band: %q", got)
	}
}

func TestBuildPromptOrderAndQuoting(t *testing.T) {
	req := Request{
		Text:     "Hola \"mundo\".",
		Voice:    DefaultVoice("es"),
		Settings: DefaultSettings(),
		Language: "es",
	}
	prompt := buildPrompt(req)

	markers := []string{
		"[Role: Professional Voice Actor]",
		"[INSTRUCTIONS START]",
		"Spanish (Spain)",
		"TONO: NATURAL",
		"VELOCIDAD: NORMAL",
		"[INSTRUCTIONS END]",
		"[TEXT TO READ START]",
		`"Hola \"mundo\"."`,
		"[TEXT TO READ END]",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(prompt, m)
		if idx < 0 {
			t.Fatalf("prompt missing %q:\n%s", m, prompt)
		}
		if idx < last {
			t.Fatalf("marker %q out of order:\n%s", m, prompt)
		}
		last = idx
	}
}

func TestVoiceCatalog(t *testing.T) {
	for _, lang := range []string{"es", "en"} {
		voices := Voices(lang)
		if len(voices) != 5 {
			t.Fatalf("expected 5 %s voices, got %d", lang, len(voices))
		}
		for _, v := range voices {
			if v.Language != lang {
				t.Errorf("voice %s listed under %s", v.ID, lang)
			}
		}
	}
	if _, ok := VoiceByID("es-narrator-deep"); !ok {
		t.Fatal("catalog lookup failed")
	}
	if _, ok := VoiceByID("nope"); ok {
		t.Fatal("unknown voice resolved")
	}
	if got := DefaultVoice("en").Language; got != "en" {
		t.Fatalf("default voice language = %s", got)
	}
}

func TestMockSynthSizing(t *testing.T) {
	cfg := config.Default().Speech
	synth := NewMockSynth(cfg)

	text := strings.Repeat("a", 160)
	pcm, err := synth.Synthesize(context.Background(), Request{Text: text})
	if err != nil {
		t.Fatalf("mock synth: %v", err)
	}
	// 160 chars at 16 chars per second is 10 seconds of samples
	want := 160 * cfg.SampleRate / 16 * cfg.Channels * 2
	if len(pcm) != want {
		t.Fatalf("pcm size = %d, want %d", len(pcm), want)
	}
}

func TestMockSynthHonorsContext(t *testing.T) {
	cfg := config.Default().Speech
	synth := NewMockSynth(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := synth.Synthesize(ctx, Request{Text: "hi"}); err == nil {
		t.Fatal("expected context error")
	}
}

type countingSynth struct {
	calls atomic.Int32
}

func (c *countingSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	c.calls.Add(1)
	return []byte{0, 0}, nil
}

func TestPreviewCacheHit(t *testing.T) {
	inner := &countingSynth{}
	cache, err := NewPreviewCache(inner, 4)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	voice := DefaultVoice("es")
	settings := DefaultSettings()
	ctx := context.Background()

	if _, err := cache.Preview(ctx, voice, settings, "es"); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if _, err := cache.Preview(ctx, voice, settings, "es"); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Fatalf("expected single synthesis for repeated preview, got %d", got)
	}

	settings.Speed = 1.5
	if _, err := cache.Preview(ctx, voice, settings, "es"); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Fatalf("changed settings should miss the cache, got %d calls", got)
	}
}
