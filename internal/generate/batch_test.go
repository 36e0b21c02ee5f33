package generate

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lectiolabs/lectio-core/internal/audio"
	"github.com/lectiolabs/lectio-core/internal/book"
	"github.com/lectiolabs/lectio-core/internal/speech"
)

const threeChapterDoc = `# Chapter One
First chapter body text.

# Chapter Two
Second chapter FAILME body text.

# Chapter Three
Third chapter body text.
`

// markerSynth fails any chunk containing the marker and synthesizes a
// fixed buffer otherwise.
type markerSynth struct{}

func (markerSynth) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	if strings.Contains(req.Text, "FAILME") {
		return nil, speech.Classify(500, "synthetic failure", nil)
	}
	return []byte{0, 0, 0, 0}, nil
}

func sectionIDs(sections []*book.Section) []string {
	ids := make([]string, len(sections))
	for i, sec := range sections {
		ids[i] = sec.ID
	}
	return ids
}

func TestRunBatchContinuesOnError(t *testing.T) {
	cfg := testConfig(t)
	orch, repo := newTestOrchestrator(t, cfg, markerSynth{})

	sections := orch.SubmitDocument("Book", threeChapterDoc)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	ids := sectionIDs(sections)

	result, err := orch.RunBatch(context.Background(), ids, true)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(result.Completed) != 2 {
		t.Fatalf("completed = %v, want 2 sections", result.Completed)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("failed = %v, want 1 section", result.Failed)
	}
	if _, ok := result.Failed[ids[1]]; !ok {
		t.Fatalf("wrong section failed: %v", result.Failed)
	}

	for _, id := range []string{ids[0], ids[2]} {
		sec, _ := repo.Get(id)
		if sec.Status != book.StatusCompleted {
			t.Fatalf("section %s = %s, want completed", id, sec.Status)
		}
	}
	sec, _ := repo.Get(ids[1])
	if sec.Status != book.StatusError {
		t.Fatalf("failed section = %s, want error", sec.Status)
	}
}

func TestRunBatchStopsOnFirstErrorWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	orch, repo := newTestOrchestrator(t, cfg, markerSynth{})

	sections := orch.SubmitDocument("Book", threeChapterDoc)
	ids := sectionIDs(sections)

	result, err := orch.RunBatch(context.Background(), ids, false)
	if err == nil {
		t.Fatal("expected batch error")
	}
	if len(result.Completed) != 1 {
		t.Fatalf("completed = %v, want just the first section", result.Completed)
	}

	sec, _ := repo.Get(ids[2])
	if sec.Status != book.StatusIdle {
		t.Fatalf("later section touched: %s", sec.Status)
	}
}

func TestRunBatchSkipsCompletedSections(t *testing.T) {
	cfg := testConfig(t)
	orch, _ := newTestOrchestrator(t, cfg, markerSynth{})

	sections := orch.SubmitDocument("Book", threeChapterDoc)
	ids := sectionIDs(sections)

	if err := orch.Generate(context.Background(), ids[0]); err != nil {
		t.Fatalf("pre-generate: %v", err)
	}

	result, err := orch.RunBatch(context.Background(), ids, true)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != ids[0] {
		t.Fatalf("skipped = %v, want first section", result.Skipped)
	}
	if len(result.Completed) != 1 {
		t.Fatalf("completed = %v, want only the third section", result.Completed)
	}
}

func TestStopBatchCancelsInFlightSection(t *testing.T) {
	cfg := testConfig(t)
	gate := newGateSynth()
	orch, repo := newTestOrchestrator(t, cfg, gate)

	sections := orch.SubmitDocument("Book", threeChapterDoc)
	ids := sectionIDs(sections)

	type batchOut struct {
		result BatchResult
		err    error
	}
	outCh := make(chan batchOut, 1)
	go func() {
		result, err := orch.RunBatch(context.Background(), ids, true)
		outCh <- batchOut{result, err}
	}()

	<-gate.started
	orch.StopBatch()
	gate.release <- struct{}{}

	out := <-outCh
	if out.err != nil {
		t.Fatalf("stopped batch should not error: %v", out.err)
	}
	if !out.result.Stopped {
		t.Fatal("result not marked stopped")
	}

	sec, _ := repo.Get(ids[0])
	if sec.Status != book.StatusIdle {
		t.Fatalf("current section = %s, want idle after stop", sec.Status)
	}
	for _, id := range ids[1:] {
		sec, _ := repo.Get(id)
		if sec.Status != book.StatusIdle {
			t.Fatalf("later section touched: %s", sec.Status)
		}
	}
}

func TestPauseBatchHoldsNextSection(t *testing.T) {
	cfg := testConfig(t)
	gate := newGateSynth()
	orch, repo := newTestOrchestrator(t, cfg, gate)

	sections := orch.SubmitDocument("Book", threeChapterDoc)
	ids := sectionIDs(sections)

	type batchOut struct {
		result BatchResult
		err    error
	}
	outCh := make(chan batchOut, 1)
	go func() {
		result, err := orch.RunBatch(context.Background(), ids, true)
		outCh <- batchOut{result, err}
	}()

	<-gate.started
	orch.PauseBatch()
	gate.release <- struct{}{}

	waitForStatus(t, repo, ids[0], book.StatusCompleted)

	// The paused batch must not start the second section.
	select {
	case <-gate.started:
		t.Fatal("next section started while batch paused")
	case <-time.After(50 * time.Millisecond):
	}
	sec, _ := repo.Get(ids[1])
	if sec.Status != book.StatusIdle {
		t.Fatalf("second section = %s, want idle while paused", sec.Status)
	}

	orch.ResumeBatch()
	for range ids[1:] {
		<-gate.started
		gate.release <- struct{}{}
	}

	out := <-outCh
	if out.err != nil {
		t.Fatalf("batch: %v", out.err)
	}
	if len(out.result.Completed) != 3 {
		t.Fatalf("completed = %v, want all 3 sections", out.result.Completed)
	}
}

func TestRunBatchRejectsOverlap(t *testing.T) {
	cfg := testConfig(t)
	gate := newGateSynth()
	orch, _ := newTestOrchestrator(t, cfg, gate)

	sections := orch.SubmitDocument("Book", threeChapterDoc)
	ids := sectionIDs(sections)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = orch.RunBatch(context.Background(), ids, true)
	}()

	<-gate.started
	if _, err := orch.RunBatch(context.Background(), ids, true); err != ErrBatchActive {
		t.Fatalf("expected ErrBatchActive, got %v", err)
	}

	orch.StopBatch()
	gate.release <- struct{}{}
	<-done
}

func TestMergeSections(t *testing.T) {
	cfg := testConfig(t)
	orch, repo := newTestOrchestrator(t, cfg, nil)

	sections := orch.SubmitDocument("Book", "# One\nfirst part\n\n# Two\nsecond part longer text\n")
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	ids := sectionIDs(sections)

	for _, id := range ids {
		if err := orch.Generate(context.Background(), id); err != nil {
			t.Fatalf("generate %s: %v", id, err)
		}
	}

	merged, err := orch.MergeSections(ids)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Sections != 2 {
		t.Fatalf("sections = %d, want 2", merged.Sections)
	}
	if _, err := os.Stat(merged.Path); err != nil {
		t.Fatalf("merged file missing: %v", err)
	}

	one, _ := repo.Get(ids[0])
	two, _ := repo.Get(ids[1])
	want := one.ActualSec + two.ActualSec
	if merged.DurationSec != want {
		t.Fatalf("duration = %f, want %f", merged.DurationSec, want)
	}

	data, err := os.ReadFile(merged.Path)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	if got := audio.Duration(data, cfg.Speech.SampleRate, cfg.Speech.Channels); got != want {
		t.Fatalf("file duration = %f, want %f", got, want)
	}
}

func TestMergeSectionsNothingCompleted(t *testing.T) {
	cfg := testConfig(t)
	orch, _ := newTestOrchestrator(t, cfg, nil)
	sections := orch.SubmitDocument("Book", "only text")
	if _, err := orch.MergeSections(sectionIDs(sections)); err == nil {
		t.Fatal("expected error with no completed sections")
	}
}
