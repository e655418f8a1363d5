package surface

import (
	"context"
	"errors"
)

// ErrNoControl is returned when a requested control (commit button,
// removal link) is not present on the surface.
var ErrNoControl = errors.New("surface: control not present")

// Change is one notification emitted by the external surface.
type Change struct {
	// Scope identifies the subtree the change happened in.
	Scope string

	// Seq orders changes as observed. Monotonic per surface.
	Seq int64
}

// Notifier registers callbacks for change notifications scoped to a
// subtree. This is the event subscription abstraction the waiters are
// built on; test doubles implement it trivially.
type Notifier interface {
	// Subscribe registers fn for changes within scope. The returned
	// cancel function removes the subscription; calling it more than
	// once is safe. After cancel returns, fn is never invoked again.
	Subscribe(scope string, fn func(Change)) (cancel func())
}

// Surface is the externally-owned mutable surface the engine operates
// on. The engine knows nothing about its layout or styling; it only
// subscribes to changes, queries state through the control interfaces,
// and requests mutations.
type Surface interface {
	Notifier

	// PendingConflict reports whether the surface carries an
	// authoritative conflicting-edit-in-progress signal. The
	// orchestrator refuses to run while this holds.
	PendingConflict() bool
}

// Reference is the primary reference's rewrite control.
type Reference interface {
	// Current returns the reference as it currently reads.
	Current() string

	// Rewrite replaces the reference in place with target.
	Rewrite(ctx context.Context, target string) error
}

// Editable is the control set of one dependent annotation.
type Editable interface {
	// Scope is the notification scope covering this annotation.
	Scope() string

	// Actionable reports whether an edit control exists at all.
	// Non-actionable items have nothing to convert.
	Actionable() bool

	// RequestEdit asks the surface to open the annotation's editing
	// dialog. The dialog appears asynchronously, if at all.
	RequestEdit(ctx context.Context) error

	// Dialog returns the currently open editing dialog, if present.
	Dialog() (Dialog, bool)

	// Remove invokes the annotation's removal control.
	// Returns ErrNoControl when no such control exists.
	Remove(ctx context.Context) error
}

// Dialog is an open editing dialog's control set.
type Dialog interface {
	// Ready reports whether the dialog has become interactive.
	Ready() bool

	// OpenSelector opens the classification selector.
	OpenSelector(ctx context.Context) error

	// Options returns the classification labels currently offered.
	Options() []string

	// Search types text into the selector's search field. Results
	// replace Options after the surface settles.
	Search(ctx context.Context, text string) error

	// Select picks the option with the given label.
	Select(ctx context.Context, label string) error

	// Commit invokes the dialog's commit control.
	// Returns ErrNoControl when the control is missing.
	Commit(ctx context.Context) error
}

// Finalizer finalizes or abandons the pending change the engine built
// up on the surface.
type Finalizer interface {
	// MarkVotable flags the pending change as ready for review votes.
	MarkVotable(ctx context.Context) error

	// Submit finalizes the pending change.
	Submit(ctx context.Context) error
}
