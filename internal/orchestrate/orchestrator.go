// Package orchestrate runs one conversion end to end: resolve the
// primary reference, rewrite it in place, drive every dependent item
// to a terminal outcome, and finalize the pending change when nothing
// was left behind.
//
// A run either refuses up front (conflicting edit already pending) or
// produces a Verdict. The verdict is computed only after every item is
// terminal; a partial run has no verdict.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaban-mb/wikilift/internal/convert"
	"github.com/chaban-mb/wikilift/internal/resolve"
	"github.com/chaban-mb/wikilift/internal/store"
	"github.com/chaban-mb/wikilift/internal/surface"
)

// Resolver maps a primary reference to its canonical target.
// Implemented by resolve.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, source string) (resolve.Resolution, error)
}

// ItemDriver drives one item to a terminal outcome.
// Implemented by convert.Converter.
type ItemDriver interface {
	Convert(ctx context.Context, item *convert.Item)
	Remove(ctx context.Context, item *convert.Item)
}

// Journal records completed runs. Implemented by store.Store.
type Journal interface {
	RecordConversion(ctx context.Context, rec store.ConversionRecord) (bool, error)
}

// Request is one conversion to run.
type Request struct {
	// Token correlates the run in logs and the audit journal.
	// Minted from the token generator when empty.
	Token string

	// Reference is the primary reference's rewrite control.
	Reference surface.Reference

	// Items are the dependent annotations, in surface order.
	Items []*convert.Item
}

// Verdict is the aggregate result of a completed run.
//
// Per-item failures are visible only in aggregate: a failed item is
// left on the surface for manual review and counts against Handled.
type Verdict struct {
	// Token is the run's correlation token.
	Token string

	// Resolved reports whether the primary reference resolved to a
	// canonical target.
	Resolved bool

	// Entity and Target carry the resolution result when Resolved.
	Entity string
	Target string

	// FailureCode is the resolution failure category when not Resolved.
	FailureCode resolve.Code

	// Handled counts items that ended Converted or Removed.
	Handled int

	// Total counts all items in the request.
	Total int

	// AllItemsHandled reports Handled == Total.
	AllItemsHandled bool

	// Submitted reports whether the pending change was finalized.
	Submitted bool
}

// PendingConflictError is returned when the surface already carries a
// conflicting pending edit. The run refuses before any network call or
// mutation.
type PendingConflictError struct{}

// Error implements the error interface.
func (e *PendingConflictError) Error() string {
	return "conversion refused: conflicting edit already pending"
}

// IsPendingConflict returns true for PendingConflictError.
func IsPendingConflict(err error) bool {
	var pe *PendingConflictError
	return errors.As(err, &pe)
}

// Orchestrator composes the resolver, the item driver, and the
// finalization controls into complete runs.
type Orchestrator struct {
	surface   surface.Surface
	resolver  Resolver
	driver    ItemDriver
	finalizer surface.Finalizer
	tokens    TokenGenerator
	journal   Journal
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTokens overrides the UUIDv7 token generator.
func WithTokens(g TokenGenerator) Option {
	return func(o *Orchestrator) { o.tokens = g }
}

// WithJournal attaches an audit journal. Without one, runs are not
// recorded.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// withNow overrides journal timestamps. Used by tests.
func withNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator operating on s.
func New(s surface.Surface, r Resolver, d ItemDriver, f surface.Finalizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		surface:   s,
		resolver:  r,
		driver:    d,
		finalizer: f,
		tokens:    UUIDv7Generator{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one conversion.
//
// When the primary reference resolves, it is rewritten in place and
// every item is converted; when resolution fails, every item is
// removed instead. Items are driven strictly in order, one at a time.
// The pending change is finalized (marked votable and submitted) in
// either branch iff every item was handled.
//
// A rewrite failure aborts before any item is driven: no item has left
// Pending at that point, so no verdict exists for the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Verdict, error) {
	token := req.Token
	if token == "" {
		token = o.tokens.Generate()
	}
	log := slog.With("token", token)

	if o.surface.PendingConflict() {
		log.Warn("conversion refused, conflicting edit pending")
		return Verdict{}, &PendingConflictError{}
	}

	source := req.Reference.Current()
	log.Info("conversion started", "source", source, "items", len(req.Items))

	res, resolveErr := o.resolver.Resolve(ctx, source)
	resolved := resolveErr == nil

	if resolved && res.Target != source {
		if err := req.Reference.Rewrite(ctx, res.Target); err != nil {
			return Verdict{}, fmt.Errorf("rewrite primary reference to %s: %w", res.Target, err)
		}
	}

	for _, item := range req.Items {
		if resolved {
			o.driver.Convert(ctx, item)
		} else {
			o.driver.Remove(ctx, item)
		}
	}

	handled := 0
	for i, item := range req.Items {
		switch item.Outcome() {
		case convert.OutcomeConverted, convert.OutcomeRemoved:
			handled++
		case convert.OutcomePending:
			// Driver contract violation - no verdict for a partial run.
			return Verdict{}, fmt.Errorf("item %d left pending after drive", i)
		}
	}

	verdict := Verdict{
		Token:           token,
		Resolved:        resolved,
		Entity:          res.Entity,
		Target:          res.Target,
		FailureCode:     resolve.CodeOf(resolveErr),
		Handled:         handled,
		Total:           len(req.Items),
		AllItemsHandled: handled == len(req.Items),
	}

	var finalizeErr error
	if verdict.AllItemsHandled {
		finalizeErr = o.finalize(ctx)
		verdict.Submitted = finalizeErr == nil
	}

	o.record(ctx, log, source, req.Items, verdict)

	if finalizeErr != nil {
		return verdict, finalizeErr
	}

	log.Info("conversion finished",
		"resolved", verdict.Resolved,
		"handled", verdict.Handled,
		"total", verdict.Total,
		"submitted", verdict.Submitted,
	)
	return verdict, nil
}

func (o *Orchestrator) finalize(ctx context.Context) error {
	if err := o.finalizer.MarkVotable(ctx); err != nil {
		return fmt.Errorf("mark change votable: %w", err)
	}
	if err := o.finalizer.Submit(ctx); err != nil {
		return fmt.Errorf("submit change: %w", err)
	}
	return nil
}

// record journals the run against the pre-rewrite source. Journal
// failures are logged, never escalated: the conversion itself already
// happened on the surface.
func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, source string, items []*convert.Item, v Verdict) {
	if o.journal == nil {
		return
	}

	rec := store.ConversionRecord{
		Token:           v.Token,
		Source:          source,
		Entity:          v.Entity,
		Target:          v.Target,
		Resolved:        v.Resolved,
		AllItemsHandled: v.AllItemsHandled,
		Submitted:       v.Submitted,
		FailureCode:     string(v.FailureCode),
		ItemCount:       v.Total,
		HandledCount:    v.Handled,
		CreatedAt:       o.now(),
	}
	for i, item := range items {
		rec.Items = append(rec.Items, store.ItemRecord{
			Position:       i,
			Classification: item.Classification,
			Outcome:        item.Outcome().String(),
			FinalState:     item.State().String(),
		})
	}

	if _, err := o.journal.RecordConversion(ctx, rec); err != nil {
		log.Warn("audit journal write failed", "error", err)
	}
}
