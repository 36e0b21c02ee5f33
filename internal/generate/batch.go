package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lectiolabs/lectio-core/internal/audio"
	"github.com/lectiolabs/lectio-core/internal/book"
	"github.com/lectiolabs/lectio-core/internal/protocol"
	"github.com/lectiolabs/lectio-core/internal/speech"
)

// ErrBatchActive rejects overlapping batch runs; one document narrates
// one section at a time.
var ErrBatchActive = errors.New("a batch run is already in flight")

// BatchResult summarizes one sequential run over several sections.
type BatchResult struct {
	Completed []string
	Skipped   []string
	Failed    map[string]string
	Stopped   bool
}

// RunBatch generates the given sections sequentially in document order.
// Already-completed sections are skipped so a re-run after a partial
// failure only pays for what is missing. With continueOnError a failed
// section is recorded and the run moves on; otherwise it stops there.
func (o *Orchestrator) RunBatch(ctx context.Context, ids []string, continueOnError bool) (BatchResult, error) {
	result := BatchResult{Failed: make(map[string]string)}

	sections := make([]*book.Section, 0, len(ids))
	for _, id := range ids {
		sec, err := o.repo.Get(id)
		if err != nil {
			return result, err
		}
		sections = append(sections, sec)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Index < sections[j].Index })

	stop, err := o.claimBatch()
	if err != nil {
		return result, err
	}
	defer o.releaseBatch()

	o.logger.Info("batch started",
		slog.Int("sections", len(sections)),
		slog.Bool("continue_on_error", continueOnError))

	for _, sec := range sections {
		if err := o.waitBatchReady(ctx, stop); err != nil {
			result.Stopped = true
			break
		}
		if sec.Status == book.StatusCompleted {
			result.Skipped = append(result.Skipped, sec.ID)
			continue
		}

		err := o.Generate(ctx, sec.ID)
		switch {
		case err == nil:
			result.Completed = append(result.Completed, sec.ID)
		case errors.Is(err, ErrCancelled):
			result.Stopped = true
			return result, nil
		default:
			result.Failed[sec.ID] = speech.AsError(err).UserMessage()
			if !continueOnError {
				o.logger.Warn("batch aborted on failed section", slog.String("section", sec.ID))
				return result, err
			}
		}
	}

	o.logger.Info("batch finished",
		slog.Int("completed", len(result.Completed)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("failed", len(result.Failed)),
		slog.Bool("stopped", result.Stopped))
	return result, nil
}

// waitBatchReady gates the start of each section run: a paused batch
// blocks here, between sections, until resumed or stopped.
func (o *Orchestrator) waitBatchReady(ctx context.Context, stop *book.ControlToken) error {
	poll := time.Duration(o.cfg.Generate.PausePollMS) * time.Millisecond
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	for {
		if stop.Cancelled() || ctx.Err() != nil {
			return ErrCancelled
		}
		if !stop.Paused() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

// PauseBatch keeps the in-flight batch from starting its next section.
// The current section keeps running; pause it separately if needed.
func (o *Orchestrator) PauseBatch() {
	o.mu.Lock()
	stop := o.batchStop
	o.mu.Unlock()
	if stop != nil {
		stop.Pause()
	}
}

// ResumeBatch releases a paused batch.
func (o *Orchestrator) ResumeBatch() {
	o.mu.Lock()
	stop := o.batchStop
	o.mu.Unlock()
	if stop != nil {
		stop.Resume()
	}
}

// StopBatch halts the in-flight batch after cancelling its current
// section. Completed sections keep their audio.
func (o *Orchestrator) StopBatch() {
	o.mu.Lock()
	stop := o.batchStop
	tokens := make([]*book.ControlToken, 0, len(o.tokens))
	for _, t := range o.tokens {
		tokens = append(tokens, t)
	}
	o.mu.Unlock()

	if stop != nil {
		stop.Cancel()
	}
	for _, t := range tokens {
		t.Cancel()
	}
}

func (o *Orchestrator) claimBatch() (*book.ControlToken, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.batchStop != nil {
		return nil, ErrBatchActive
	}
	o.batchStop = book.NewControlToken()
	return o.batchStop, nil
}

func (o *Orchestrator) releaseBatch() {
	o.mu.Lock()
	o.batchStop = nil
	o.mu.Unlock()
}

// MergeSections assembles one WAV container from the completed sections
// among ids, ordered by document index, and writes it to the output
// directory for the player to pick up.
func (o *Orchestrator) MergeSections(ids []string) (protocol.BatchMerged, error) {
	sections := make([]*book.Section, 0, len(ids))
	for _, id := range ids {
		sec, err := o.repo.Get(id)
		if err != nil {
			return protocol.BatchMerged{}, err
		}
		if sec.Status != book.StatusCompleted {
			continue
		}
		sections = append(sections, sec)
	}
	if len(sections) == 0 {
		return protocol.BatchMerged{}, fmt.Errorf("no completed sections to merge")
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Index < sections[j].Index })

	buffers := make([][]byte, 0, len(sections))
	for _, sec := range sections {
		container, err := o.repo.Audio(sec.ID)
		if err != nil {
			return protocol.BatchMerged{}, err
		}
		if len(container) < audio.HeaderSize {
			return protocol.BatchMerged{}, fmt.Errorf("section %s has no stored audio", sec.ID)
		}
		buffers = append(buffers, container[audio.HeaderSize:])
	}

	merged, err := audio.Merge(buffers, o.cfg.Speech.SampleRate, o.cfg.Speech.Channels)
	if err != nil {
		return protocol.BatchMerged{}, fmt.Errorf("merge sections: %w", err)
	}

	dir := o.cfg.Generate.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return protocol.BatchMerged{}, fmt.Errorf("create output dir: %w", err)
	}
	name := fmt.Sprintf("lectio-merged-%s.wav", time.Now().UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, merged, 0o644); err != nil {
		return protocol.BatchMerged{}, fmt.Errorf("write merged audio: %w", err)
	}

	announcement := protocol.BatchMerged{
		Path:        path,
		DurationSec: audio.Duration(merged, o.cfg.Speech.SampleRate, o.cfg.Speech.Channels),
		Sections:    len(sections),
		Timestamp:   time.Now().UTC(),
	}
	o.logger.Info("sections merged",
		slog.Int("sections", announcement.Sections),
		slog.Float64("duration_sec", announcement.DurationSec),
		slog.String("path", path))
	return announcement, nil
}
