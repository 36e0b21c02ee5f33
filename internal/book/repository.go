package book

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lectiolabs/lectio-core/internal/segment"
)

var (
	ErrNotFound      = errors.New("section not found")
	ErrNotEditable   = errors.New("section is busy and cannot be edited")
	ErrAlreadyActive = errors.New("section generation already in flight")
)

// Repository owns every section of the loaded document. All state
// transitions go through its methods so the status machine cannot be
// bypassed by callers holding raw pointers.
type Repository struct {
	mu       sync.RWMutex
	sections map[string]*Section
}

func NewRepository() *Repository {
	return &Repository{sections: make(map[string]*Section)}
}

// Replace swaps in a freshly parsed document, releasing every previous
// section and its audio buffers.
func (r *Repository) Replace(parsed []segment.Section) []*Section {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sections = make(map[string]*Section, len(parsed))
	out := make([]*Section, 0, len(parsed))
	for i, p := range parsed {
		sec := NewSection(i, p)
		r.sections[sec.ID] = sec
		out = append(out, sec.clone())
	}
	return out
}

// Get returns an observer copy of one section.
func (r *Repository) Get(id string) (*Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sec, ok := r.sections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sec.clone(), nil
}

// List returns observer copies ordered by document index.
func (r *Repository) List() []*Section {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Section, 0, len(r.sections))
	for _, sec := range r.sections {
		out = append(out, sec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Content returns the live text of a section for generation.
func (r *Repository) Content(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sec, ok := r.sections[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sec.Content, nil
}

// Audio hands out the stored result buffer for merging or export.
func (r *Repository) Audio(id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sec, ok := r.sections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sec.Audio, nil
}

// UpdateContent edits a section's text. Edits are only allowed outside an
// in-flight run; a changed body invalidates any previous result and
// resets the section to idle.
func (r *Repository) UpdateContent(id, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec, ok := r.sections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !sec.Editable() {
		return fmt.Errorf("%w: %s", ErrNotEditable, id)
	}
	if sec.Content == content {
		return nil
	}
	sec.Content = content
	sec.CharCount = len([]rune(content))
	sec.EstimatedSec = segment.EstimateDurationSec(sec.CharCount)
	sec.Status = StatusIdle
	sec.Progress = 0
	sec.CurrentStep = ""
	sec.Audio = nil
	sec.AudioPath = ""
	sec.ActualSec = 0
	sec.GenerationSec = 0
	return nil
}

// Begin moves a section into the generating state. Only idle, error or
// completed sections may start a run.
func (r *Repository) Begin(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec, ok := r.sections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	switch sec.Status {
	case StatusGenerating, StatusPaused, StatusMerging:
		return fmt.Errorf("%w: %s", ErrAlreadyActive, id)
	}
	sec.Status = StatusGenerating
	sec.Progress = 0
	sec.CurrentStep = ""
	return nil
}

// SetProgress records chunk-loop progress while generating.
func (r *Repository) SetProgress(id string, progress int, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sec, ok := r.sections[id]; ok {
		sec.Progress = progress
		sec.CurrentStep = step
	}
}

// MarkPaused and MarkResumed flip between the paused and generating
// states without touching progress.
func (r *Repository) MarkPaused(id string) {
	r.setStatus(id, StatusGenerating, StatusPaused)
}

func (r *Repository) MarkResumed(id string) {
	r.setStatus(id, StatusPaused, StatusGenerating)
}

// MarkMerging flags the post-synthesis assembly step.
func (r *Repository) MarkMerging(id string) {
	r.setStatus(id, StatusGenerating, StatusMerging)
}

func (r *Repository) setStatus(id string, from, to Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sec, ok := r.sections[id]; ok && sec.Status == from {
		sec.Status = to
	}
}

// Complete attaches the finished audio and marks the section done.
func (r *Repository) Complete(id string, audio []byte, path string, actualSec, generationSec float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sec, ok := r.sections[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sec.Status = StatusCompleted
	sec.Progress = 100
	sec.CurrentStep = ""
	sec.Audio = audio
	sec.AudioPath = path
	sec.ActualSec = actualSec
	sec.GenerationSec = generationSec
	return nil
}

// Fail marks the section errored with a user-facing message.
func (r *Repository) Fail(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sec, ok := r.sections[id]; ok {
		sec.Status = StatusError
		sec.CurrentStep = message
	}
}

// ResetIdle rolls a cancelled run back to its pre-generation state: idle
// status, zero progress, no step text and no partial result.
func (r *Repository) ResetIdle(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sec, ok := r.sections[id]; ok {
		sec.Status = StatusIdle
		sec.Progress = 0
		sec.CurrentStep = ""
	}
}

// Clear drops every section and releases audio buffers.
func (r *Repository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections = make(map[string]*Section)
}
