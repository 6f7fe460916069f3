package gui

import (
	"sync"

	lgwidget "codeberg.org/snonux/lingogate/internal/widget"
)

// retrySlot holds the last action blocked on verification. It only
// keeps one when auto is set, otherwise the user repeats the action.
type retrySlot struct {
	mu   sync.Mutex
	auto bool
	fn   func()
}

// park remembers fn and reports whether it will run again on its own
func (r *retrySlot) park(fn func()) bool {
	if !r.auto || fn == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn = fn
	return true
}

// take hands out the parked action once a token has arrived. The slot
// is empty afterwards.
func (r *retrySlot) take(state lgwidget.State) func() {
	if state != lgwidget.StateTokenAcquired {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn := r.fn
	r.fn = nil
	return fn
}
