// Package generate drives narration runs: it walks a section's
// provider-safe chunks through the synthesizer, honors pause and cancel
// between calls, throttles to the provider's rate limits, and assembles
// the finished WAV container.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lectiolabs/lectio-core/internal/audio"
	"github.com/lectiolabs/lectio-core/internal/book"
	"github.com/lectiolabs/lectio-core/internal/config"
	"github.com/lectiolabs/lectio-core/internal/optimize"
	"github.com/lectiolabs/lectio-core/internal/protocol"
	"github.com/lectiolabs/lectio-core/internal/segment"
	"github.com/lectiolabs/lectio-core/internal/speech"
)

// ErrCancelled reports a run stopped by user request. The section rolls
// back to idle; nothing is kept.
var ErrCancelled = errors.New("generation cancelled")

// Orchestrator runs section generation against the configured
// synthesizer. One orchestrator serves the whole document; individual
// sections run one at a time each, guarded by the repository's status
// machine.
type Orchestrator struct {
	cfg      config.Config
	repo     *book.Repository
	synth    speech.Synthesizer
	rewriter optimize.Rewriter
	logger   *slog.Logger
	limiter  *rate.Limiter
	metrics  *metrics

	// OnProgress and OnDone observe state changes; set before first use.
	OnProgress func(protocol.SectionProgress)
	OnDone     func(protocol.SectionDone)

	mu        sync.Mutex
	voice     speech.Voice
	settings  speech.Settings
	tokens    map[string]*book.ControlToken
	batchStop *book.ControlToken
}

func NewOrchestrator(cfg config.Config, repo *book.Repository, synth speech.Synthesizer, rewriter optimize.Rewriter, logger *slog.Logger) *Orchestrator {
	voice, ok := speech.VoiceByID(cfg.Speech.Voice)
	if !ok {
		voice = speech.DefaultVoice(cfg.Speech.Language)
	}
	wait := time.Duration(cfg.Generate.ChunkWaitMS) * time.Millisecond
	if cfg.Speech.Paid {
		wait = time.Duration(cfg.Generate.PaidChunkWaitMS) * time.Millisecond
	}
	return &Orchestrator{
		cfg:      cfg,
		repo:     repo,
		synth:    synth,
		rewriter: rewriter,
		logger:   logger.With(slog.String("component", "generate")),
		limiter:  rate.NewLimiter(rate.Every(wait), 1),
		metrics:  newMetrics(logger),
		voice:    voice,
		settings: speech.DefaultSettings(),
		tokens:   make(map[string]*book.ControlToken),
	}
}

// SubmitDocument parses text into sections and replaces the loaded
// document. Any previous sections and their audio are released.
func (o *Orchestrator) SubmitDocument(title, text string) []*book.Section {
	parsed := segment.Parse(text, title, o.cfg.Segmenter)
	sections := o.repo.Replace(parsed)
	o.logger.Info("document parsed",
		slog.String("title", title),
		slog.Int("sections", len(sections)))
	return sections
}

// SetVoice switches the narration voice for subsequent runs.
func (o *Orchestrator) SetVoice(id string) error {
	voice, ok := speech.VoiceByID(id)
	if !ok {
		return fmt.Errorf("unknown voice %q", id)
	}
	o.mu.Lock()
	o.voice = voice
	o.mu.Unlock()
	return nil
}

// SetSettings swaps the narration settings. In-flight runs keep reading
// the settings they started with only until their next chunk; changes
// never apply mid-chunk.
func (o *Orchestrator) SetSettings(s speech.Settings) {
	o.mu.Lock()
	o.settings = s
	o.mu.Unlock()
}

func (o *Orchestrator) currentRequest() (speech.Voice, speech.Settings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voice, o.settings
}

// Pause flags an in-flight run; it takes effect before the next chunk.
func (o *Orchestrator) Pause(id string) {
	if t := o.token(id); t != nil {
		t.Pause()
	}
}

// Resume releases a paused run.
func (o *Orchestrator) Resume(id string) {
	if t := o.token(id); t != nil {
		t.Resume()
	}
}

// Cancel aborts an in-flight run. The section rolls back to idle and any
// partial audio is discarded.
func (o *Orchestrator) Cancel(id string) {
	if t := o.token(id); t != nil {
		t.Cancel()
	}
}

func (o *Orchestrator) token(id string) *book.ControlToken {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[id]
}

func (o *Orchestrator) claimToken(id string) *book.ControlToken {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := book.NewControlToken()
	o.tokens[id] = t
	return t
}

func (o *Orchestrator) releaseToken(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.tokens, id)
}

// Generate runs one section to completion. It blocks until the section
// is completed, failed, or cancelled; callers wanting concurrency run it
// in a goroutine.
func (o *Orchestrator) Generate(ctx context.Context, id string) error {
	if o.cfg.Speech.Mode == "gemini" && o.cfg.Speech.APIKey == "" {
		return speech.ErrMissingCredential
	}
	if err := o.repo.Begin(id); err != nil {
		return err
	}
	token := o.claimToken(id)
	defer o.releaseToken(id)

	started := time.Now()
	err := o.run(ctx, id, token, started)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		o.repo.ResetIdle(id)
		o.publishProgress(id, book.StatusIdle, 0, "")
		o.logger.Info("generation cancelled", slog.String("section", id))
		return ErrCancelled
	default:
		serr := speech.AsError(err)
		o.repo.Fail(id, serr.UserMessage())
		o.publishProgress(id, book.StatusError, 0, serr.UserMessage())
		o.metrics.sectionFailed(ctx, serr.Kind.String())
		o.logger.Error("generation failed",
			slog.String("section", id),
			slog.String("kind", serr.Kind.String()),
			slog.String("error", err.Error()))
		return err
	}
}

func (o *Orchestrator) run(ctx context.Context, id string, token *book.ControlToken, started time.Time) error {
	content, err := o.repo.Content(id)
	if err != nil {
		return err
	}
	_, settings := o.currentRequest()
	chunks := segment.Chunks(content, segment.ChunkOptions{
		MaxChars:          o.cfg.Segmenter.MaxChunkChars,
		Dialogue:          settings.DialogueMode,
		DialogueLineChars: o.cfg.Segmenter.DialogueLineChars,
	})
	if len(chunks) == 0 {
		return fmt.Errorf("section %s has no text", id)
	}

	total := len(chunks)
	var pcm [][]byte
	for i, chunk := range chunks {
		if err := o.waitReady(ctx, id, token); err != nil {
			return err
		}

		percent := int(float64(i)/float64(total)*100 + 0.5)
		step := fmt.Sprintf("generating part %d/%d", i+1, total)
		o.repo.SetProgress(id, percent, step)
		o.publishProgress(id, book.StatusGenerating, percent, step)

		voice, settings := o.currentRequest()
		text := chunk
		if settings.AutoOptimize {
			rewritten, err := o.rewriter.Rewrite(ctx, chunk, o.cfg.Speech.Language)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				o.logger.Warn("rewrite failed, narrating original text",
					slog.String("section", id),
					slog.String("error", err.Error()))
			} else if rewritten != "" {
				text = rewritten
			}
			if extra := o.cfg.Generate.OptimizeExtraWaitMS; extra > 0 && i < total-1 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(extra) * time.Millisecond):
				}
			}
		}

		out, err := o.synth.Synthesize(ctx, speech.Request{
			Text:     text,
			Voice:    voice,
			Settings: settings,
			Language: o.cfg.Speech.Language,
		})
		if err != nil {
			return err
		}
		o.metrics.chunkSynthesized(ctx)
		pcm = append(pcm, out)
	}

	if token.Cancelled() {
		return ErrCancelled
	}

	o.repo.MarkMerging(id)
	o.publishProgress(id, book.StatusMerging, 100, "assembling audio")

	container, err := audio.Merge(pcm, o.cfg.Speech.SampleRate, o.cfg.Speech.Channels)
	if err != nil {
		return fmt.Errorf("assemble wav: %w", err)
	}
	actualSec := audio.Duration(container, o.cfg.Speech.SampleRate, o.cfg.Speech.Channels)

	path, err := o.writeAudio(id, container)
	if err != nil {
		return err
	}

	generationSec := time.Since(started).Seconds()
	if err := o.repo.Complete(id, container, path, actualSec, generationSec); err != nil {
		return err
	}
	o.publishProgress(id, book.StatusCompleted, 100, "")
	o.publishDone(id, actualSec, generationSec, len(container))
	o.metrics.sectionCompleted(ctx, generationSec)
	o.logger.Info("section generated",
		slog.String("section", id),
		slog.Int("chunks", total),
		slog.Float64("duration_sec", actualSec),
		slog.Float64("generation_sec", generationSec))
	return nil
}

// waitReady gates each chunk call: it blocks while paused, honors
// cancellation, then waits for a rate limiter slot so consecutive calls
// respect the provider's per-minute budget.
func (o *Orchestrator) waitReady(ctx context.Context, id string, token *book.ControlToken) error {
	poll := time.Duration(o.cfg.Generate.PausePollMS) * time.Millisecond
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	wasPaused := false
	for {
		if token.Cancelled() {
			return ErrCancelled
		}
		if !token.Paused() {
			break
		}
		if !wasPaused {
			wasPaused = true
			o.repo.MarkPaused(id)
			o.publishProgress(id, book.StatusPaused, -1, "paused")
			o.logger.Info("generation paused", slog.String("section", id))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
	if wasPaused {
		o.repo.MarkResumed(id)
		o.logger.Info("generation resumed", slog.String("section", id))
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}
	if token.Cancelled() {
		return ErrCancelled
	}
	return nil
}

func (o *Orchestrator) writeAudio(id string, container []byte) (string, error) {
	dir := o.cfg.Generate.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, id+".wav")
	if err := os.WriteFile(path, container, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) publishProgress(id string, status book.Status, progress int, step string) {
	if o.OnProgress == nil {
		return
	}
	msg := protocol.SectionProgress{
		SectionID: id,
		Status:    string(status),
		Step:      step,
		Timestamp: time.Now().UTC(),
	}
	if progress >= 0 {
		msg.Progress = progress
	} else if sec, err := o.repo.Get(id); err == nil {
		msg.Progress = sec.Progress
	}
	o.OnProgress(msg)
}

func (o *Orchestrator) publishDone(id string, durationSec, generationSec float64, bytes int) {
	if o.OnDone == nil {
		return
	}
	o.OnDone(protocol.SectionDone{
		SectionID:     id,
		DurationSec:   durationSec,
		GenerationSec: generationSec,
		Bytes:         bytes,
		Timestamp:     time.Now().UTC(),
	})
}
