package convert

import (
	"sync"

	"github.com/chaban-mb/wikilift/internal/surface"
)

// Outcome is the terminal result of processing one item.
// Every item ends in exactly one terminal outcome; the transition away
// from OutcomePending happens once and is never reversed.
type Outcome int

const (
	// OutcomePending means the item has not been processed yet.
	OutcomePending Outcome = iota

	// OutcomeConverted means the item's classification was rewritten.
	OutcomeConverted

	// OutcomeRemoved means the item was removed instead of converted.
	OutcomeRemoved

	// OutcomeFailed means processing failed; the item is left for
	// manual review.
	OutcomeFailed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeConverted:
		return "converted"
	case OutcomeRemoved:
		return "removed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the outcome is final.
func (o Outcome) Terminal() bool {
	return o != OutcomePending
}

// State names the item's position in the conversion state machine.
// States make every exit path of the dialog interaction enumerable;
// they exist for observability and testing, the Outcome is the
// contract.
type State int

const (
	// StatePending is the initial state.
	StatePending State = iota

	// StateDialogRequested means the editing dialog has been asked to
	// open.
	StateDialogRequested

	// StateDialogOpen means the dialog appeared and is interactive.
	StateDialogOpen

	// StateTypeSelectionAttempted means an accepted classification
	// label was found and selection is in progress.
	StateTypeSelectionAttempted

	// StateConfirmed is the success terminal of the convert path.
	StateConfirmed

	// StateRemovalRequested means the removal control was invoked.
	StateRemovalRequested

	// StateRecoveryAttempted means a failure occurred and best-effort
	// recovery ran.
	StateRecoveryAttempted

	// StateRemoved is the success terminal of the removal path.
	StateRemoved

	// StateFailed is the failure terminal.
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDialogRequested:
		return "dialog_requested"
	case StateDialogOpen:
		return "dialog_open"
	case StateTypeSelectionAttempted:
		return "type_selection_attempted"
	case StateConfirmed:
		return "confirmed"
	case StateRemovalRequested:
		return "removal_requested"
	case StateRecoveryAttempted:
		return "recovery_attempted"
	case StateRemoved:
		return "removed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Item is one dependent annotation flowing through the converter.
//
// The outcome moves Pending -> {Converted|Removed|Failed} exactly once.
// A second finish attempt is ignored, which keeps re-driving an
// already-processed item harmless.
type Item struct {
	// Handle is the item's control set on the external surface.
	Handle surface.Editable

	// Classification is the item's current classification label,
	// carried for reporting.
	Classification string

	mu      sync.Mutex
	outcome Outcome
	state   State
}

// NewItem creates a pending item.
func NewItem(handle surface.Editable, classification string) *Item {
	return &Item{Handle: handle, Classification: classification}
}

// Outcome returns the item's current outcome.
func (i *Item) Outcome() Outcome {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.outcome
}

// State returns the item's current state-machine position.
func (i *Item) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// setState advances the state machine. No effect once terminal.
func (i *Item) setState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.outcome.Terminal() {
		return
	}
	i.state = s
}

// finish records the terminal outcome. Returns false (and changes
// nothing) when the item is already terminal.
func (i *Item) finish(o Outcome, s State) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.outcome.Terminal() {
		return false
	}
	i.outcome = o
	i.state = s
	return true
}
