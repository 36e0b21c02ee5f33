package protocol

import "time"

// DocumentSubmit carries a full document to be parsed into sections.
type DocumentSubmit struct {
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

// SectionSnapshot is the observable state of one section, broadcast
// after parsing and after content edits. Audio bytes never travel in
// snapshots.
type SectionSnapshot struct {
	SectionID    string  `json:"section_id"`
	Index        int     `json:"index"`
	Title        string  `json:"title"`
	CharCount    int     `json:"char_count"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	EstimatedSec float64 `json:"estimated_sec"`
}

// SectionCommand targets one section: generate, cancel, pause, resume.
type SectionCommand struct {
	SectionID string `json:"section_id"`
}

// SectionProgress reports generation state changes.
type SectionProgress struct {
	SectionID string    `json:"section_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// SectionDone announces a completed section.
type SectionDone struct {
	SectionID     string    `json:"section_id"`
	DurationSec   float64   `json:"duration_sec"`
	GenerationSec float64   `json:"generation_sec"`
	Bytes         int       `json:"bytes"`
	Timestamp     time.Time `json:"timestamp"`
}

// BatchStart requests sequential generation of several sections.
type BatchStart struct {
	SectionIDs      []string `json:"section_ids"`
	ContinueOnError *bool    `json:"continue_on_error,omitempty"`
}

// BatchMerge requests one WAV assembled from completed sections.
type BatchMerge struct {
	SectionIDs []string `json:"section_ids"`
}

// BatchMerged announces where the merged container was written.
type BatchMerged struct {
	Path        string    `json:"path"`
	DurationSec float64   `json:"duration_sec"`
	Sections    int       `json:"sections"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	SubjectDocSubmit       = "lectio.doc.submit"
	SubjectDocSections     = "lectio.doc.sections"
	SubjectSectionGenerate = "lectio.section.generate"
	SubjectSectionCancel   = "lectio.section.cancel"
	SubjectSectionPause    = "lectio.section.pause"
	SubjectSectionResume   = "lectio.section.resume"
	SubjectSectionProgress = "lectio.section.progress"
	SubjectSectionDone     = "lectio.section.done"
	SubjectBatchStart      = "lectio.batch.start"
	SubjectBatchStop       = "lectio.batch.stop"
	SubjectBatchPause      = "lectio.batch.pause"
	SubjectBatchResume     = "lectio.batch.resume"
	SubjectBatchMerge      = "lectio.batch.merge"
	SubjectBatchMerged     = "lectio.batch.merged"
)
