// Package marker tracks the draggable observation coordinate. The coordinate defaults to the
// selected locality's stored coordinate and may be moved away from it by dragging.
package marker

import (
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/paulmach/orb"
)

// Controller holds the observation coordinate for a single locality choice. There is no undo
// history: only the current coordinate and the locality default are kept.
type Controller struct {
	selected   *locality.Locality
	coordinate *orb.Point
}

func NewController() *Controller {
	return &Controller{}
}

// OnLocalitySelected resets the coordinate to the stored coordinate of 'l', discarding any
// manual override made for a previous locality. A nil 'l' empties the coordinate.
func (c *Controller) OnLocalitySelected(l *locality.Locality) {
	c.selected = l
	c.Reset()
}

// OnDrag moves the coordinate to 'pt'.
func (c *Controller) OnDrag(pt orb.Point) {
	c.coordinate = &pt
}

// Reset restores the coordinate to the selected locality's coordinate, or empties it when no
// locality is selected.
func (c *Controller) Reset() {

	if c.selected == nil {
		c.coordinate = nil
		return
	}

	pt := c.selected.Point()
	c.coordinate = &pt
}

// Coordinate returns the current observation coordinate and false if it is empty.
func (c *Controller) Coordinate() (orb.Point, bool) {

	if c.coordinate == nil {
		return orb.Point{}, false
	}

	return *c.coordinate, true
}

// Default returns the selected locality's stored coordinate and false if no locality is selected.
func (c *Controller) Default() (orb.Point, bool) {

	if c.selected == nil {
		return orb.Point{}, false
	}

	return c.selected.Point(), true
}

// Selected returns the locality the coordinate is scoped to, if any.
func (c *Controller) Selected() *locality.Locality {
	return c.selected
}

// IsCustomized reports whether the coordinate differs from the locality default.
func (c *Controller) IsCustomized() bool {

	pt, ok := c.Coordinate()

	if !ok {
		return false
	}

	def, ok := c.Default()

	if !ok {
		return true
	}

	return pt != def
}
