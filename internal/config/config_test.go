package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Segmenter.MaxChunkChars != 1000 {
		t.Fatalf("expected default max chunk chars 1000, got %d", cfg.Segmenter.MaxChunkChars)
	}
	if cfg.Speech.SampleRate != 24000 {
		t.Fatalf("expected default sample rate 24000, got %d", cfg.Speech.SampleRate)
	}
	if cfg.Generate.ChunkWaitMS != 12000 {
		t.Fatalf("expected default chunk wait 12000, got %d", cfg.Generate.ChunkWaitMS)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LECTIO_SPEECH_API_KEY", "test-key")
	t.Setenv("LECTIO_SPEECH_PAID", "true")
	t.Setenv("LECTIO_SPEECH_QUOTA_COOLDOWN_MS", "100")
	t.Setenv("LECTIO_SEGMENTER_MAX_CHUNK_CHARS", "500")
	t.Setenv("LECTIO_SEGMENTER_LONG_AUDIO_THRESHOLD_CHARS", "6000")
	t.Setenv("LECTIO_GENERATE_CHUNK_WAIT_MS", "10")
	t.Setenv("LECTIO_GENERATE_CONTINUE_ON_ERROR", "false")
	t.Setenv("LECTIO_EVENT_STORE_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Speech.APIKey != "test-key" {
		t.Fatalf("expected api key override")
	}
	if !cfg.Speech.Paid {
		t.Fatal("expected paid override true")
	}
	if cfg.Speech.QuotaCooldown != 100 {
		t.Fatalf("expected quota cooldown 100, got %d", cfg.Speech.QuotaCooldown)
	}
	if cfg.Segmenter.MaxChunkChars != 500 {
		t.Fatalf("expected max chunk chars 500, got %d", cfg.Segmenter.MaxChunkChars)
	}
	if cfg.Generate.ChunkWaitMS != 10 {
		t.Fatalf("expected chunk wait 10, got %d", cfg.Generate.ChunkWaitMS)
	}
	if cfg.Generate.ContinueOnError {
		t.Fatal("expected continue_on_error override false")
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected retention mode override")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lectio.yaml")
	data := []byte(`
speech:
  mode: exec
  command: "piper --output_raw"
  language: en
segmenter:
  max_chunk_chars: 800
  long_audio_threshold_chars: 9000
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Speech.Mode != "exec" {
		t.Fatalf("expected speech mode exec, got %s", cfg.Speech.Mode)
	}
	if cfg.Speech.Command == "" {
		t.Fatal("expected speech command set")
	}
	if cfg.Segmenter.MaxChunkChars != 800 {
		t.Fatalf("expected max chunk chars 800, got %d", cfg.Segmenter.MaxChunkChars)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	t.Setenv("LECTIO_SPEECH_MODE", "cloudfake")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for unknown speech mode")
	}
}

func TestValidateRejectsExecWithoutCommand(t *testing.T) {
	t.Setenv("LECTIO_SPEECH_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for exec mode without command")
	}
}
