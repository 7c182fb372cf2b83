// Package viewport decides whether, and how, the map camera should move when the active
// scope or the observation coordinate changes.
package viewport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldnotes/go-locality-picker/scope"
	"github.com/fieldnotes/go-locality-picker/shape"
	"github.com/paulmach/orb"
)

// Action is the kind of camera move a Command asks for.
type Action string

const (
	ActionNone   Action = "none"
	ActionFit    Action = "fit"
	ActionCenter Action = "center"
)

// Options are the fixed animation parameters used for camera moves.
type Options struct {
	// Padding, in pixels, kept between fitted bounds and the viewport edge.
	Padding float64 `yaml:"padding"`
	// MaxZoom caps the zoom level of a fit.
	MaxZoom float64 `yaml:"max_zoom"`
	// CenterZoom is the zoom level used when easing to the observation coordinate.
	CenterZoom float64 `yaml:"center_zoom"`
	// Duration bounds the length of the camera animation.
	Duration time.Duration `yaml:"duration"`
}

// DefaultOptions returns the options used by the inventory form.
func DefaultOptions() *Options {

	opts := &Options{
		Padding:    20,
		MaxZoom:    15,
		CenterZoom: 15,
		Duration:   time.Second,
	}

	return opts
}

// Command is a camera move decided by the reconciler.
type Command struct {
	Action   Action        `json:"action"`
	Bounds   orb.Bound     `json:"bounds,omitempty"`
	Center   orb.Point     `json:"center,omitempty"`
	Zoom     float64       `json:"zoom,omitempty"`
	Padding  float64       `json:"padding,omitempty"`
	MaxZoom  float64       `json:"max_zoom,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// None is the Command that leaves the camera untouched.
var None = Command{Action: ActionNone}

type FitOptions struct {
	Padding  float64
	MaxZoom  float64
	Duration time.Duration
}

type EaseOptions struct {
	Zoom     float64
	Duration time.Duration
}

// Camera is the part of the map engine the reconciler drives.
type Camera interface {
	// Bounds returns the currently visible region.
	Bounds() orb.Bound
	FitBounds(context.Context, orb.Bound, *FitOptions) error
	EaseTo(context.Context, orb.Point, *EaseOptions) error
}

// Reconcile decides the camera move for a scope change. 'previous' is the scope evaluated
// last, or nil if no scope has been evaluated yet. If the scope has not changed the result is
// always None: a manual pan is never undone by a repeated evaluation. Otherwise a shape lying
// entirely inside or entirely outside 'rect' is fitted, while a shape straddling the edge of
// 'rect' is left alone.
func Reconcile(b *shape.BoundingShape, rect orb.Bound, previous *scope.Scope, current scope.Scope, opts *Options) Command {

	if previous != nil && *previous == current {
		return None
	}

	if b == nil {
		return None
	}

	switch b.Relate(rect) {
	case shape.RelationContained, shape.RelationDisjoint:
		return fitCommand(b.Bound(), opts)
	default:
		return None
	}
}

// OnCoordinateChange returns a Center command if 'coord' falls outside 'rect'.
func OnCoordinateChange(coord orb.Point, rect orb.Bound, opts *Options) Command {

	if rect.Contains(coord) {
		return None
	}

	cmd := Command{
		Action:   ActionCenter,
		Center:   coord,
		Zoom:     opts.CenterZoom,
		Duration: opts.Duration,
	}

	return cmd
}

func fitCommand(b orb.Bound, opts *Options) Command {

	cmd := Command{
		Action:   ActionFit,
		Bounds:   b,
		Padding:  opts.Padding,
		MaxZoom:  opts.MaxZoom,
		Duration: opts.Duration,
	}

	return cmd
}

// Apply performs 'cmd' on 'camera'. It is the only place a camera is moved.
func Apply(ctx context.Context, camera Camera, cmd Command) error {

	if camera == nil {
		return nil
	}

	logger := slog.Default()
	logger = logger.With("action", cmd.Action)

	switch cmd.Action {
	case ActionFit:

		fit_opts := &FitOptions{
			Padding:  cmd.Padding,
			MaxZoom:  cmd.MaxZoom,
			Duration: cmd.Duration,
		}

		logger.Debug("Fit camera", "bounds", cmd.Bounds)

		err := camera.FitBounds(ctx, cmd.Bounds, fit_opts)

		if err != nil {
			return fmt.Errorf("Failed to fit bounds, %w", err)
		}

	case ActionCenter:

		ease_opts := &EaseOptions{
			Zoom:     cmd.Zoom,
			Duration: cmd.Duration,
		}

		logger.Debug("Ease camera", "center", cmd.Center)

		err := camera.EaseTo(ctx, cmd.Center, ease_opts)

		if err != nil {
			return fmt.Errorf("Failed to ease camera, %w", err)
		}
	}

	return nil
}
