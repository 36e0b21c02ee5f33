package book

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lectiolabs/lectio-core/internal/segment"
)

// Status tracks a section through the generation state machine:
// idle -> generating -> (paused <-> generating) -> merging -> completed,
// with generating -> idle on cancel and generating -> error on failure.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusPaused     Status = "paused"
	StatusMerging    Status = "merging"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Section is the unit of generation and user-facing progress: one chapter
// or document part with its text, live state and, once generated, its
// audio result.
type Section struct {
	ID        string
	Index     int
	Title     string
	Content   string
	CharCount int

	Status      Status
	Progress    int
	CurrentStep string

	// Result, owned by this section until cleared or replaced.
	Audio     []byte
	AudioPath string

	EstimatedSec  int
	ActualSec     float64
	GenerationSec float64
}

// NewSection builds an idle section from parsed document content.
func NewSection(index int, parsed segment.Section) *Section {
	chars := parsed.CharCount()
	return &Section{
		ID:           fmt.Sprintf("sec-%s", uuid.NewString()),
		Index:        index,
		Title:        parsed.Title,
		Content:      parsed.Content,
		CharCount:    chars,
		Status:       StatusIdle,
		EstimatedSec: segment.EstimateDurationSec(chars),
	}
}

// Terminal reports whether the section will not change state without a
// new user action.
func (s *Section) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusError
}

// Editable reports whether content updates are allowed. Edits during an
// in-flight run are rejected by policy.
func (s *Section) Editable() bool {
	switch s.Status {
	case StatusIdle, StatusError, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s *Section) clone() *Section {
	copied := *s
	// Audio buffers stay owned by the repository copy; observers get the
	// reference path and sizes, not a shared mutable slice.
	copied.Audio = nil
	return &copied
}
