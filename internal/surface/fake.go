package surface

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is the in-memory Surface used by tests and scenario runs.
//
// Items and dialogs follow an ItemScript: each script names the one
// deviation from the happy path it exhibits (dialog never opens,
// commit control missing, ...), which makes every converter exit path
// reproducible without real timing.
//
// Notifications are delivered synchronously to all matching
// subscribers on the goroutine that caused the change.
//
// Thread-safety: all methods are safe for concurrent use, though the
// engine drives the fake from a single goroutine.
type Fake struct {
	mu        sync.Mutex
	seq       int64
	subs      map[int]*fakeSub
	nextSub   int
	pending   bool
	mutations int
}

type fakeSub struct {
	scope string
	fn    func(Change)
}

// NewFake creates an empty fake surface.
func NewFake() *Fake {
	return &Fake{subs: make(map[int]*fakeSub)}
}

// Subscribe implements Notifier. Matching is subtree-scoped: a
// subscriber at "rel/3" sees changes at "rel/3" and below; the empty
// scope sees everything.
func (f *Fake) Subscribe(scope string, fn func(Change)) (cancel func()) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = &fakeSub{scope: scope, fn: fn}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Notify delivers a change at scope to every matching subscriber.
func (f *Fake) Notify(scope string) {
	f.mu.Lock()
	f.seq++
	change := Change{Scope: scope, Seq: f.seq}
	var fns []func(Change)
	for _, s := range f.subs {
		if scopeCovers(s.scope, scope) {
			fns = append(fns, s.fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// scopeCovers reports whether a subscription at sub sees a change at
// target.
func scopeCovers(sub, target string) bool {
	if sub == "" || sub == target {
		return true
	}
	return strings.HasPrefix(target, sub+"/")
}

// SetPendingConflict sets the conflicting-edit-in-progress signal.
func (f *Fake) SetPendingConflict(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = v
}

// PendingConflict implements Surface.
func (f *Fake) PendingConflict() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Mutations returns the number of mutation-control invocations the
// fake has seen (edits, removals, selects, commits, rewrites,
// finalizations). Used to assert the fail-fast path touched nothing.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

func (f *Fake) recordMutation() {
	f.mu.Lock()
	f.mutations++
	f.mu.Unlock()
}

// ItemScript declares how a fake item behaves when driven.
// The zero value is a fully cooperative item with no selector options.
type ItemScript struct {
	// NoEditControl makes the item non-actionable.
	NoEditControl bool

	// DialogNeverOpens swallows RequestEdit: no dialog ever appears.
	DialogNeverOpens bool

	// Options are the labels preloaded into the classification selector.
	Options []string

	// SearchResults maps typed search text to the options offered
	// after the surface settles.
	SearchResults map[string][]string

	// NoCommitControl removes the dialog's commit control.
	NoCommitControl bool

	// DialogNeverCloses keeps the dialog open after a commit.
	DialogNeverCloses bool

	// NoRemovalControl removes the item's removal control.
	NoRemovalControl bool
}

// FakeItem is one scripted dependent annotation.
type FakeItem struct {
	f      *Fake
	scope  string
	script ItemScript

	mu           sync.Mutex
	dialog       *FakeDialog
	removed      bool
	editRequests int
}

// NewItem creates a scripted item whose notifications appear at scope.
func (f *Fake) NewItem(scope string, script ItemScript) *FakeItem {
	return &FakeItem{f: f, scope: scope, script: script}
}

// Scope implements Editable.
func (i *FakeItem) Scope() string { return i.scope }

// Actionable implements Editable.
func (i *FakeItem) Actionable() bool { return !i.script.NoEditControl }

// RequestEdit implements Editable. The dialog (when the script allows
// one) appears immediately and a change notification fires.
func (i *FakeItem) RequestEdit(ctx context.Context) error {
	i.f.recordMutation()
	i.mu.Lock()
	i.editRequests++
	if i.script.DialogNeverOpens {
		i.mu.Unlock()
		return nil
	}
	if i.dialog == nil {
		i.dialog = &FakeDialog{item: i, options: append([]string(nil), i.script.Options...)}
	}
	i.mu.Unlock()

	i.f.Notify(i.scope)
	return nil
}

// Dialog implements Editable.
func (i *FakeItem) Dialog() (Dialog, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dialog == nil {
		return nil, false
	}
	return i.dialog, true
}

// Remove implements Editable.
func (i *FakeItem) Remove(ctx context.Context) error {
	i.f.recordMutation()
	if i.script.NoRemovalControl {
		return ErrNoControl
	}
	i.mu.Lock()
	i.removed = true
	i.mu.Unlock()

	i.f.Notify(i.scope)
	return nil
}

// Removed reports whether the removal control fired.
func (i *FakeItem) Removed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.removed
}

// EditRequests returns how often RequestEdit was invoked.
func (i *FakeItem) EditRequests() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.editRequests
}

// FakeDialog is the scripted editing dialog of a FakeItem.
type FakeDialog struct {
	item *FakeItem

	mu           sync.Mutex
	selectorOpen bool
	options      []string
	selected     string
	commits      int
}

// Ready implements Dialog. Fake dialogs are interactive on appearance.
func (d *FakeDialog) Ready() bool { return true }

// OpenSelector implements Dialog.
func (d *FakeDialog) OpenSelector(ctx context.Context) error {
	d.item.f.recordMutation()
	d.mu.Lock()
	d.selectorOpen = true
	d.mu.Unlock()

	d.item.f.Notify(d.item.scope)
	return nil
}

// Options implements Dialog.
func (d *FakeDialog) Options() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.options...)
}

// Search implements Dialog. The scripted results replace the options.
func (d *FakeDialog) Search(ctx context.Context, text string) error {
	d.item.f.recordMutation()
	d.mu.Lock()
	d.options = append([]string(nil), d.item.script.SearchResults[text]...)
	d.mu.Unlock()

	d.item.f.Notify(d.item.scope)
	return nil
}

// Select implements Dialog.
func (d *FakeDialog) Select(ctx context.Context, label string) error {
	d.item.f.recordMutation()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, opt := range d.options {
		if opt == label {
			d.selected = label
			return nil
		}
	}
	return fmt.Errorf("surface: option %q not offered", label)
}

// Selected returns the label chosen through Select, if any.
func (d *FakeDialog) Selected() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// Commit implements Dialog. Unless the script keeps the dialog open,
// committing closes it and fires a change notification.
func (d *FakeDialog) Commit(ctx context.Context) error {
	d.item.f.recordMutation()
	if d.item.script.NoCommitControl {
		return ErrNoControl
	}

	d.mu.Lock()
	d.commits++
	d.mu.Unlock()

	if !d.item.script.DialogNeverCloses {
		d.item.mu.Lock()
		d.item.dialog = nil
		d.item.mu.Unlock()
	}

	d.item.f.Notify(d.item.scope)
	return nil
}

// Commits returns how often the commit control fired.
func (d *FakeDialog) Commits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// FakeReference is the scripted primary reference.
type FakeReference struct {
	f *Fake

	mu       sync.Mutex
	current  string
	rewrites []string
}

// NewReference creates a reference reading current.
func (f *Fake) NewReference(current string) *FakeReference {
	return &FakeReference{f: f, current: current}
}

// Current implements Reference.
func (r *FakeReference) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Rewrite implements Reference.
func (r *FakeReference) Rewrite(ctx context.Context, target string) error {
	r.f.recordMutation()
	r.mu.Lock()
	r.current = target
	r.rewrites = append(r.rewrites, target)
	r.mu.Unlock()
	return nil
}

// Rewrites returns every rewrite in order.
func (r *FakeReference) Rewrites() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rewrites...)
}

// FakeFinalizer counts finalization calls.
type FakeFinalizer struct {
	f *Fake

	mu        sync.Mutex
	votable   int
	submitted int
}

// NewFinalizer creates a finalizer bound to the fake's mutation count.
func (f *Fake) NewFinalizer() *FakeFinalizer {
	return &FakeFinalizer{f: f}
}

// MarkVotable implements Finalizer.
func (fz *FakeFinalizer) MarkVotable(ctx context.Context) error {
	fz.f.recordMutation()
	fz.mu.Lock()
	defer fz.mu.Unlock()
	fz.votable++
	return nil
}

// Submit implements Finalizer.
func (fz *FakeFinalizer) Submit(ctx context.Context) error {
	fz.f.recordMutation()
	fz.mu.Lock()
	defer fz.mu.Unlock()
	fz.submitted++
	return nil
}

// Submissions returns how often Submit fired.
func (fz *FakeFinalizer) Submissions() int {
	fz.mu.Lock()
	defer fz.mu.Unlock()
	return fz.submitted
}

// VotableMarks returns how often MarkVotable fired.
func (fz *FakeFinalizer) VotableMarks() int {
	fz.mu.Lock()
	defer fz.mu.Unlock()
	return fz.votable
}
