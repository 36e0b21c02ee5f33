package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lectiolabs/lectio-core/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func speechCfg(endpoint string) config.SpeechConfig {
	cfg := config.Default().Speech
	cfg.Mode = "gemini"
	cfg.Endpoint = endpoint
	cfg.APIKey = "test-key"
	cfg.TimeoutMS = 5000
	cfg.MaxRetries = 3
	cfg.RetryBaseMS = 1
	cfg.QuotaCooldown = 0
	return cfg
}

func audioResponse(t *testing.T, pcm []byte) []byte {
	t.Helper()
	body := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{
					"inlineData": map[string]any{
						"mimeType": "audio/L16;codec=pcm;rate=24000",
						"data":     base64.StdEncoding.EncodeToString(pcm),
					},
				}},
			},
		}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return data
}

func testRequest() Request {
	return Request{
		Text:     "Hello world.",
		Voice:    DefaultVoice("en"),
		Settings: DefaultSettings(),
		Language: "en",
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	wantPCM := []byte{1, 2, 3, 4, 5, 6}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Contains(body, []byte("TEXT TO READ START")) {
			t.Errorf("prompt missing literal text marker: %s", body)
		}
		w.Write(audioResponse(t, wantPCM))
	}))
	defer srv.Close()

	synth := NewGeminiSynth(speechCfg(srv.URL), testLogger())
	pcm, err := synth.Synthesize(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !bytes.Equal(pcm, wantPCM) {
		t.Fatalf("pcm mismatch: %v", pcm)
	}
}

func TestSynthesizeRetriesTransientThenSucceeds(t *testing.T) {
	wantPCM := []byte{9, 9, 9, 9}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":500,"status":"INTERNAL","message":"transient blip"}}`)
			return
		}
		w.Write(audioResponse(t, wantPCM))
	}))
	defer srv.Close()

	synth := NewGeminiSynth(speechCfg(srv.URL), testLogger())
	pcm, err := synth.Synthesize(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("synthesize after retries: %v", err)
	}
	if !bytes.Equal(pcm, wantPCM) {
		t.Fatalf("pcm mismatch after retries: %v", pcm)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSynthesizeQuotaExhaustion(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota exceeded"}}`)
	}))
	defer srv.Close()

	cfg := speechCfg(srv.URL)
	cfg.MaxRetries = 2
	synth := NewGeminiSynth(cfg, testLogger())
	_, err := synth.Synthesize(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected quota error")
	}
	serr := AsError(err)
	if serr.Kind != KindQuota {
		t.Fatalf("expected quota kind, got %s", serr.Kind)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if msg := serr.UserMessage(); msg == "" || msg == serr.Message {
		t.Fatalf("expected daily-quota user message, got %q", msg)
	}
}

func TestSynthesizeAuthNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"status":"PERMISSION_DENIED","message":"API key invalid"}}`)
	}))
	defer srv.Close()

	synth := NewGeminiSynth(speechCfg(srv.URL), testLogger())
	_, err := synth.Synthesize(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected auth error")
	}
	if serr := AsError(err); serr.Kind != KindAuth {
		t.Fatalf("expected auth kind, got %s", serr.Kind)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("auth errors must not be retried, got %d attempts", got)
	}
}

func TestSynthesizeMissingCredential(t *testing.T) {
	cfg := speechCfg("http://localhost:1")
	cfg.APIKey = ""
	synth := NewGeminiSynth(cfg, testLogger())
	_, err := synth.Synthesize(context.Background(), testRequest())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestSynthesizeMalformedResponseIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	cfg := speechCfg(srv.URL)
	cfg.MaxRetries = 1
	synth := NewGeminiSynth(cfg, testLogger())
	_, err := synth.Synthesize(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
	if serr := AsError(err); serr.Kind != KindTransient {
		t.Fatalf("expected transient kind, got %s", serr.Kind)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		status  int
		message string
		want    Kind
	}{
		{429, "too many requests", KindQuota},
		{500, "RESOURCE_EXHAUSTED: slow down", KindQuota},
		{400, "quota exceeded for project", KindQuota},
		{401, "unauthenticated", KindAuth},
		{403, "permission denied", KindAuth},
		{400, "API key not valid", KindAuth},
		{500, "internal error", KindTransient},
		{0, "connection refused", KindTransient},
	}
	for _, tc := range cases {
		if got := Classify(tc.status, tc.message, nil).Kind; got != tc.want {
			t.Errorf("Classify(%d, %q) = %s, want %s", tc.status, tc.message, got, tc.want)
		}
	}
}
