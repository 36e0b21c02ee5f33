// Package runtime assembles the engine: telemetry, the message bus,
// the event store, the synthesis stack and the generation service, plus
// a small HTTP surface for health, metrics and voice previews.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lectiolabs/lectio-core/internal/audio"
	"github.com/lectiolabs/lectio-core/internal/book"
	"github.com/lectiolabs/lectio-core/internal/bus"
	"github.com/lectiolabs/lectio-core/internal/config"
	"github.com/lectiolabs/lectio-core/internal/eventstore"
	"github.com/lectiolabs/lectio-core/internal/generate"
	"github.com/lectiolabs/lectio-core/internal/natsserver"
	"github.com/lectiolabs/lectio-core/internal/optimize"
	"github.com/lectiolabs/lectio-core/internal/speech"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	preview     *speech.PreviewCache
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer store.Close()

	synth, err := speech.FromConfig(r.cfg.Speech, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}
	r.preview, err = speech.NewPreviewCache(synth, r.cfg.Speech.PreviewCache)
	if err != nil {
		return fmt.Errorf("failed to build preview cache: %w", err)
	}

	rewriter := optimize.FromConfig(r.cfg, r.logger)
	repo := book.NewRepository()
	orch := generate.NewOrchestrator(r.cfg, repo, synth, rewriter, r.logger)

	svc := generate.NewService(ctx, r.cfg, busClient, orch, store, r.logger)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start generate service: %w", err)
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/v1/voices", r.handleVoices)
	mux.HandleFunc("/v1/voices/preview", r.handleVoicePreview)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("engine started",
		slog.String("addr", addr),
		slog.String("speech_mode", r.cfg.Speech.Mode),
		slog.String("language", r.cfg.Speech.Language))

	<-ctx.Done()
	r.logger.Info("engine stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleVoices(w http.ResponseWriter, req *http.Request) {
	language := req.URL.Query().Get("language")
	if language == "" {
		language = r.cfg.Speech.Language
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(speech.Voices(language))
}

// handleVoicePreview renders a short sample for one catalog voice. The
// result is cached so browsing voices does not spend provider quota.
func (r *Runtime) handleVoicePreview(w http.ResponseWriter, req *http.Request) {
	voiceID := req.URL.Query().Get("voice")
	voice, ok := speech.VoiceByID(voiceID)
	if !ok {
		http.Error(w, "unknown voice", http.StatusNotFound)
		return
	}

	settings := speech.DefaultSettings()
	if v := req.URL.Query().Get("pitch"); v != "" {
		if pitch, err := strconv.ParseFloat(v, 64); err == nil {
			settings.Pitch = pitch
		}
	}
	if v := req.URL.Query().Get("speed"); v != "" {
		if speed, err := strconv.ParseFloat(v, 64); err == nil {
			settings.Speed = speed
		}
	}
	if _, err := speech.NewSettings(settings.Pitch, settings.Speed, false, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pcm, err := r.preview.Preview(req.Context(), voice, settings, voice.Language)
	if err != nil {
		http.Error(w, speech.AsError(err).UserMessage(), http.StatusBadGateway)
		return
	}
	container, err := audio.Wrap(pcm, r.cfg.Speech.SampleRate, r.cfg.Speech.Channels)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(container)
}
