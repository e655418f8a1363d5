// Package convert drives one dependent annotation through interactive
// re-classification or removal on the external surface.
//
// The dialog interaction is an explicit state machine (see State)
// instead of an ad hoc chain of callbacks: every exit path is
// enumerable and each item ends in exactly one terminal Outcome. A
// failure at any step triggers a single best-effort recovery and marks
// the item Failed; it never aborts the batch and never escalates past
// the item.
package convert

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaban-mb/wikilift/internal/await"
	"github.com/chaban-mb/wikilift/internal/pace"
	"github.com/chaban-mb/wikilift/internal/surface"
)

// Config bounds the converter's waits and names the classification
// labels it accepts.
type Config struct {
	// CanonicalLabel is the label typed into the selector's search
	// field when no preloaded option matches.
	CanonicalLabel string

	// AcceptedLabels are the textual variants recognized as the target
	// classification. The authoritative set may grow, so it is
	// injected rather than hardcoded.
	AcceptedLabels []string

	// DialogDeadline bounds the wait for the dialog to appear and
	// become interactive.
	DialogDeadline time.Duration

	// CloseDeadline bounds the wait for the dialog to close after a
	// commit.
	CloseDeadline time.Duration

	// RecoveryDeadline bounds the brief close wait during best-effort
	// recovery.
	RecoveryDeadline time.Duration

	// Settle is the delay after a requested mutation before the next
	// observation (search re-scan, removal confirmation).
	Settle time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CanonicalLabel:   "Wikidata",
		AcceptedLabels:   []string{"Wikidata", "has a Wikidata page at"},
		DialogDeadline:   10 * time.Second,
		CloseDeadline:    10 * time.Second,
		RecoveryDeadline: 2 * time.Second,
		Settle:           600 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CanonicalLabel == "" {
		c.CanonicalLabel = d.CanonicalLabel
	}
	if len(c.AcceptedLabels) == 0 {
		c.AcceptedLabels = []string{c.CanonicalLabel}
	}
	if c.DialogDeadline <= 0 {
		c.DialogDeadline = d.DialogDeadline
	}
	if c.CloseDeadline <= 0 {
		c.CloseDeadline = d.CloseDeadline
	}
	if c.RecoveryDeadline <= 0 {
		c.RecoveryDeadline = d.RecoveryDeadline
	}
	if c.Settle < 0 {
		c.Settle = d.Settle
	}
	return c
}

// Converter drives items to a terminal outcome, one at a time.
//
// The converter never runs two items concurrently: the surface is
// owned by a single external rendering process, and exclusivity comes
// from observing each mutation's effect before issuing the next.
type Converter struct {
	notifier surface.Notifier
	clock    pace.Clock
	cfg      Config
}

// New creates a Converter waiting on n and sleeping through clock.
func New(n surface.Notifier, clock pace.Clock, cfg Config) *Converter {
	return &Converter{notifier: n, clock: clock, cfg: cfg.withDefaults()}
}

// Convert drives item through the re-classification dialog.
//
// Items without an edit control have nothing to convert and are
// trivially confirmed. When Convert returns, the item's outcome is
// terminal - Converted or Failed - for every input, including a dialog
// that never appears.
func (c *Converter) Convert(ctx context.Context, item *Item) {
	if item.Outcome().Terminal() {
		return
	}

	h := item.Handle
	if !h.Actionable() {
		item.finish(OutcomeConverted, StateConfirmed)
		return
	}

	item.setState(StateDialogRequested)
	if err := h.RequestEdit(ctx); err != nil {
		c.fail(ctx, item, "request edit dialog", err)
		return
	}

	dlg, err := await.Appearance(ctx, c.notifier, h.Scope(), c.cfg.DialogDeadline,
		func() (surface.Dialog, bool) {
			d, ok := h.Dialog()
			if !ok || !d.Ready() {
				return nil, false
			}
			return d, true
		})
	if err != nil {
		c.fail(ctx, item, "await dialog", err)
		return
	}
	item.setState(StateDialogOpen)

	if err := dlg.OpenSelector(ctx); err != nil {
		c.fail(ctx, item, "open classification selector", err)
		return
	}

	label, ok := matchAccepted(dlg.Options(), c.cfg.AcceptedLabels)
	if !ok {
		// Fallback: type the canonical label into the search field and
		// re-scan after the surface settles.
		if err := dlg.Search(ctx, c.cfg.CanonicalLabel); err != nil {
			c.fail(ctx, item, "search classification", err)
			return
		}
		if err := c.clock.Sleep(ctx, c.cfg.Settle); err != nil {
			c.fail(ctx, item, "settle after search", err)
			return
		}
		label, ok = matchAccepted(dlg.Options(), c.cfg.AcceptedLabels)
	}
	if !ok {
		c.fail(ctx, item, "match classification label", nil)
		return
	}

	item.setState(StateTypeSelectionAttempted)
	if err := dlg.Select(ctx, label); err != nil {
		c.fail(ctx, item, "select classification", err)
		return
	}

	if err := dlg.Commit(ctx); err != nil {
		c.fail(ctx, item, "commit dialog", err)
		return
	}

	if err := c.awaitDialogClosed(ctx, h, c.cfg.CloseDeadline); err != nil {
		c.fail(ctx, item, "await dialog close", err)
		return
	}

	item.finish(OutcomeConverted, StateConfirmed)
	slog.Debug("relationship converted", "scope", h.Scope(), "label", label)
}

// Remove invokes the item's removal control. When Remove returns, the
// outcome is terminal: Removed, or Failed when the control is missing.
func (c *Converter) Remove(ctx context.Context, item *Item) {
	if item.Outcome().Terminal() {
		return
	}

	item.setState(StateRemovalRequested)
	if err := item.Handle.Remove(ctx); err != nil {
		slog.Warn("relationship removal failed",
			"scope", item.Handle.Scope(),
			"error", err,
		)
		item.finish(OutcomeFailed, StateFailed)
		return
	}

	// Settle before the next item touches the surface.
	if err := c.clock.Sleep(ctx, c.cfg.Settle); err != nil {
		item.finish(OutcomeFailed, StateFailed)
		return
	}

	item.finish(OutcomeRemoved, StateRemoved)
}

// fail runs best-effort recovery and marks the item Failed. Recovery
// success does not change the outcome: the step that failed already
// left the item unconvertible this run.
func (c *Converter) fail(ctx context.Context, item *Item, step string, err error) {
	item.setState(StateRecoveryAttempted)
	recovered := c.recover(ctx, item)

	slog.Warn("relationship conversion failed",
		"scope", item.Handle.Scope(),
		"step", step,
		"error", err,
		"recovered", recovered,
	)
	item.finish(OutcomeFailed, StateFailed)
}

// recover re-invokes the dialog's commit control if the dialog is
// still present, then waits briefly for closure. Returns whether the
// surface was left without an open dialog.
func (c *Converter) recover(ctx context.Context, item *Item) bool {
	d, ok := item.Handle.Dialog()
	if !ok {
		return true
	}
	if err := d.Commit(ctx); err != nil {
		return false
	}
	return c.awaitDialogClosed(ctx, item.Handle, c.cfg.RecoveryDeadline) == nil
}

func (c *Converter) awaitDialogClosed(ctx context.Context, h surface.Editable, deadline time.Duration) error {
	return await.Removal(ctx, c.notifier, h.Scope(), deadline, func() bool {
		_, open := h.Dialog()
		return open
	})
}
