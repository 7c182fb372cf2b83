package viewport

import (
	"log/slog"

	"github.com/fieldnotes/go-locality-picker/scope"
	"github.com/fieldnotes/go-locality-picker/shape"
	"github.com/paulmach/orb"
)

// Reconciler remembers the last scope it evaluated so that the scope-driven path fires at most
// once per transition.
type Reconciler struct {
	options  *Options
	previous *scope.Scope
}

func NewReconciler(opts *Options) *Reconciler {

	if opts == nil {
		opts = DefaultOptions()
	}

	r := &Reconciler{
		options: opts,
	}

	return r
}

// Update evaluates the transition to 'current' and records it.
func (r *Reconciler) Update(b *shape.BoundingShape, rect orb.Bound, current scope.Scope) Command {

	cmd := Reconcile(b, rect, r.previous, current, r.options)

	if r.previous == nil || *r.previous != current {
		slog.Debug("Scope transition", "scope", current.String(), "action", cmd.Action)
	}

	s := current
	r.previous = &s

	return cmd
}

// Center evaluates the coordinate-driven path; it has no memory.
func (r *Reconciler) Center(coord orb.Point, rect orb.Bound) Command {
	return OnCoordinateChange(coord, rect, r.options)
}

// Previous returns the last evaluated scope, and false if none has been evaluated.
func (r *Reconciler) Previous() (scope.Scope, bool) {

	if r.previous == nil {
		return scope.None, false
	}

	return *r.previous, true
}

// Forget clears the remembered scope so the next Update fires again.
func (r *Reconciler) Forget() {
	r.previous = nil
}
