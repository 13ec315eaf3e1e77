package summarizer

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// RunState carries per-run summarization state. Build one with NewRunState at
// the start of every run and pass it down; nothing here is global.
type RunState struct {
	id    string
	quota atomic.Bool

	// SkipOnQuota skips the primary provider for the rest of the run once it
	// has exhausted its retries on quota errors.
	SkipOnQuota bool
}

// NewRunState returns a fresh state with a new run id.
func NewRunState() *RunState {
	return &RunState{id: uuid.NewString()}
}

// ID identifies the run in logs and results.
func (s *RunState) ID() string {
	return s.id
}

// QuotaExceeded reports whether the primary provider ran out of quota this run.
func (s *RunState) QuotaExceeded() bool {
	return s.quota.Load()
}

func (s *RunState) markQuotaExceeded() {
	s.quota.Store(true)
}

// Reset clears the quota flag.
func (s *RunState) Reset() {
	s.quota.Store(false)
}
