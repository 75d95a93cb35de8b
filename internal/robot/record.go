// Package robot implements the Robot Record (C3): per-frame state for
// one detected bot. A Record is built empty by the Arena Processor and
// discarded at the start of the next Update().
package robot

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/arenaerr"
)

// Jitter is the positional deduplication radius (px) for markers and
// identity dots.
const Jitter = 10.0

// Color is a BGR triple, matching gocv.Scalar's channel order for the
// images this system draws on.
type Color struct {
	B, G, R uint8
}

// defaultBlue/defaultRed are the team colours: bots with id <= 4
// render blue, the rest red.
var (
	defaultBlue = Color{B: 255, G: 0, R: 0}
	defaultRed  = Color{B: 0, G: 0, R: 255}
	white       = Color{B: 255, G: 255, R: 255}
)

// Record is one robot's state for the current frame.
type Record struct {
	location     image.Point
	hasLocation  bool
	contour      []image.Point // rotated-rect vertices, full-frame px
	marker       image.Point
	hasMarker    bool
	dots         []image.Point
	colorOverride *Color
}

// New returns an empty Record.
func New() *Record {
	return &Record{}
}

// SetLocation succeeds once; subsequent calls fail with ErrAlreadySet.
func (r *Record) SetLocation(p image.Point) error {
	if r.hasLocation {
		return arenaerr.ErrAlreadySet
	}
	r.location = p
	r.hasLocation = true
	return nil
}

// Location returns the robot's centre, full-frame pixels.
func (r *Record) Location() image.Point { return r.location }

// SetContour stores the rotated-rectangle vertices, full-frame pixels.
func (r *Record) SetContour(pts []image.Point) {
	r.contour = append([]image.Point(nil), pts...)
}

// Contour returns the stored vertices.
func (r *Record) Contour() []image.Point { return r.contour }

// ContourContains reports whether pt lies inside the contour polygon,
// boundary counting as inside (PointPolygonTest >= 0).
func (r *Record) ContourContains(pt image.Point) bool {
	if len(r.contour) == 0 {
		return false
	}
	pv := gocv.NewPointVectorFromPoints(r.contour)
	defer pv.Close()
	d := gocv.PointPolygonTest(pv, gocv.Point2f{X: float32(pt.X), Y: float32(pt.Y)}, false)
	return d >= 0
}

// SetMarker binds a direction marker. Rejected if pt falls outside the
// contour, or a marker is already set and pt is within Jitter of it
// (jitter deduplication); otherwise it overwrites. Returns true if the
// marker was accepted.
func (r *Record) SetMarker(pt image.Point) bool {
	if !r.ContourContains(pt) {
		return false
	}
	if r.hasMarker && withinJitter(r.marker, pt) {
		return false
	}
	r.marker = pt
	r.hasMarker = true
	return true
}

// Marker returns the direction marker position and whether one is set.
func (r *Record) Marker() (image.Point, bool) { return r.marker, r.hasMarker }

// AddIDDot registers an identity dot. Rejected if pt falls outside the
// contour, or lies within Jitter of an already-registered dot.
// Otherwise it is inserted and the record's id becomes len(dots).
func (r *Record) AddIDDot(pt image.Point) bool {
	if !r.ContourContains(pt) {
		return false
	}
	for _, d := range r.dots {
		if withinJitter(d, pt) {
			return false
		}
	}
	r.dots = append(r.dots, pt)
	return true
}

// Dots returns the registered identity dots.
func (r *Record) Dots() []image.Point { return r.dots }

// ID returns the robot's identity (the dot count) and whether any dots
// were bound this frame.
func (r *Record) ID() (int, bool) {
	if len(r.dots) == 0 {
		return 0, false
	}
	return len(r.dots), true
}

// Heading computes the nautical heading in degrees [0, 360), or
// reports false if no marker is bound. The atan2 call's x term is
// inverted relative to the usual math convention (location minus
// marker). With image y pointing down, a marker above the centre maps
// to 0, left to 90, below to 180 and right to 270.
func (r *Record) Heading() (int, bool) {
	if !r.hasMarker {
		return 0, false
	}
	dy := float64(r.marker.Y - r.location.Y)
	dx := float64(r.location.X - r.marker.X)
	theta := math.Atan2(dy, dx)
	d := int(theta * 180 / math.Pi) // truncate to whole degrees before branching on sign

	var heading int
	if d < 0 {
		heading = (450 + d) % 360
	} else {
		heading = 90 + d
	}
	return heading % 360, true
}

// SetColor overrides the render colour for this record's bot.
func (r *Record) SetColor(c Color) { r.colorOverride = &c }

// Color returns the render colour: an override if one was set,
// otherwise the team colour for id (<=4 blue, else red). Bots with no
// id yet render white.
func (r *Record) Color() Color {
	if r.colorOverride != nil {
		return *r.colorOverride
	}
	id, ok := r.ID()
	if !ok {
		return white
	}
	if id <= 4 {
		return defaultBlue
	}
	return defaultRed
}

func withinJitter(a, b image.Point) bool {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx+dy*dy) <= Jitter
}
