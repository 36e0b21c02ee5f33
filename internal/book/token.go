package book

import "sync"

// ControlToken carries the pause/cancel flags for one in-flight run. The
// orchestration loop reads it between sub-chunk calls; pause and cancel
// entry points write it from other goroutines.
type ControlToken struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool
}

func NewControlToken() *ControlToken {
	return &ControlToken{}
}

func (t *ControlToken) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *ControlToken) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

func (t *ControlToken) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

func (t *ControlToken) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *ControlToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
