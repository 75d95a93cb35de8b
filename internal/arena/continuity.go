package arena

import (
	"image"
	"math"

	"github.com/connectedhumber/arena-locator/internal/observability"
	"github.com/connectedhumber/arena-locator/internal/robot"
)

// Continuity is a purely observational diagnostic: it matches this
// frame's bots to last frame's by bounding-box IoU and counts how
// often a spatially-continuous bot's id changes between frames. It
// never feeds back into GetRobots() or id assignment — per-frame
// identity recomputation is a hard requirement, not a bug to patch
// over. Adapted from the IoU-matching shape of a SORT-like tracker;
// everything about track ageing/confirmation/embeddings is dropped
// since there is nothing here to re-identify across frames.
type Continuity struct {
	prev []continuityBot
}

type continuityBot struct {
	bbox [4]float32
	id   int
	has  bool
}

// NewContinuity returns an empty diagnostic tracker.
func NewContinuity() *Continuity {
	return &Continuity{}
}

// Observe compares bots against the previous frame's bots and
// increments the identity-churn counter for every IoU-matched pair
// whose id differs. Update() calls this once per frame, after dots and
// markers have been bound.
func (c *Continuity) Observe(bots []*robot.Record) {
	const minIoU = 0.3

	cur := make([]continuityBot, 0, len(bots))
	for _, b := range bots {
		id, ok := b.ID()
		cur = append(cur, continuityBot{bbox: boundingBoxOf(b.Contour()), id: id, has: ok})
	}

	matchedPrev := make([]bool, len(c.prev))
	for _, cb := range cur {
		best := float32(minIoU)
		bestIdx := -1
		for i, pb := range c.prev {
			if matchedPrev[i] {
				continue
			}
			if v := iou(cb.bbox, pb.bbox); v > best {
				best = v
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			continue
		}
		matchedPrev[bestIdx] = true
		pb := c.prev[bestIdx]
		if cb.has && pb.has && cb.id != pb.id {
			observability.IdentityChurn.Inc()
		}
	}

	c.prev = cur
}

func boundingBoxOf(contour []image.Point) [4]float32 {
	if len(contour) == 0 {
		return [4]float32{}
	}
	minX, minY := contour[0].X, contour[0].Y
	maxX, maxY := contour[0].X, contour[0].Y
	for _, p := range contour[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return [4]float32{float32(minX), float32(minY), float32(maxX), float32(maxY)}
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}
