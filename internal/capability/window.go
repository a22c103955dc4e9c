package capability

// outcomeWindow is a fixed-size ring of the most recent run outcomes for one
// Active capability. The breaker trips on the failure ratio over this
// window, not on lifetime totals, so an old bad patch does not haunt a
// recovered capability.
//
// Not safe for concurrent use; the registry serializes outcome reports per
// capability.
type outcomeWindow struct {
	outcomes []bool // true = success
	size     int
	next     int
	filled   int
}

func newOutcomeWindow(size int) *outcomeWindow {
	if size < 1 {
		size = 1
	}
	return &outcomeWindow{
		outcomes: make([]bool, size),
		size:     size,
	}
}

// record appends one outcome, evicting the oldest when full.
func (w *outcomeWindow) record(success bool) {
	w.outcomes[w.next] = success
	w.next = (w.next + 1) % w.size
	if w.filled < w.size {
		w.filled++
	}
}

// count returns how many outcomes the window currently holds.
func (w *outcomeWindow) count() int {
	return w.filled
}

// failures returns the number of failed outcomes in the window.
func (w *outcomeWindow) failures() int {
	failed := 0
	for i := 0; i < w.filled; i++ {
		if !w.outcomes[i] {
			failed++
		}
	}
	return failed
}

// failureRate returns the failure ratio over the recorded outcomes, or 0
// when empty.
func (w *outcomeWindow) failureRate() float64 {
	if w.filled == 0 {
		return 0
	}
	return float64(w.failures()) / float64(w.filled)
}

// reset empties the window. Used when a probation run restores Active
// status, so the capability restarts with a clean slate.
func (w *outcomeWindow) reset() {
	w.next = 0
	w.filled = 0
}
