package robot

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectedhumber/arena-locator/internal/arenaerr"
)

func square(center image.Point, half int) []image.Point {
	return []image.Point{
		{X: center.X - half, Y: center.Y - half},
		{X: center.X + half, Y: center.Y - half},
		{X: center.X + half, Y: center.Y + half},
		{X: center.X - half, Y: center.Y + half},
	}
}

func newBotAt(center image.Point) *Record {
	r := New()
	r.SetContour(square(center, 100))
	_ = r.SetLocation(center)
	return r
}

func TestSetLocationOnlyOnce(t *testing.T) {
	r := New()
	require.NoError(t, r.SetLocation(image.Pt(1, 1)))
	assert.ErrorIs(t, r.SetLocation(image.Pt(2, 2)), arenaerr.ErrAlreadySet)
}

func TestContourContainsBoundary(t *testing.T) {
	r := newBotAt(image.Pt(500, 500))
	assert.True(t, r.ContourContains(image.Pt(600, 500)), "point on the contour boundary should count as inside")
	assert.False(t, r.ContourContains(image.Pt(601, 500)), "point outside the contour should not count as inside")
}

func TestAddIDDotJitterBoundary(t *testing.T) {
	r := newBotAt(image.Pt(500, 500))

	assert.True(t, r.AddIDDot(image.Pt(450, 500)), "first dot should always be accepted")
	assert.False(t, r.AddIDDot(image.Pt(460, 500)), "dot exactly Jitter px from an existing dot should be rejected")
	assert.True(t, r.AddIDDot(image.Pt(461, 500)), "dot Jitter+1 px from an existing dot should be accepted")

	id, ok := r.ID()
	require.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestAddIDDotOutsideContourRejected(t *testing.T) {
	r := newBotAt(image.Pt(500, 500))
	assert.False(t, r.AddIDDot(image.Pt(0, 0)), "dot outside the contour should be rejected")
	_, ok := r.ID()
	assert.False(t, ok, "ID() should report false when no dots were accepted")
}

func TestSetMarkerJitterDeduplication(t *testing.T) {
	r := newBotAt(image.Pt(500, 500))
	assert.True(t, r.SetMarker(image.Pt(550, 500)), "first marker should be accepted")
	assert.False(t, r.SetMarker(image.Pt(560, 500)), "marker exactly Jitter px from the existing one should be rejected")
	assert.True(t, r.SetMarker(image.Pt(561, 500)), "marker Jitter+1 px from the existing one should overwrite and be accepted")

	m, ok := r.Marker()
	require.True(t, ok)
	assert.Equal(t, image.Point{X: 561, Y: 500}, m)
}

func TestHeadingNoMarker(t *testing.T) {
	r := newBotAt(image.Pt(500, 500))
	_, ok := r.Heading()
	assert.False(t, ok, "Heading() should report false with no marker bound")
}

// TestHeadingCardinalDirections exercises the literal inverted-x atan2
// heading formula across the four cardinal marker placements. The
// "east" case below intentionally does NOT match a naive compass
// mapping of heading==90: applying the formula mechanically to a
// marker due east of the bot's centre yields 270, not 90. The "north"
// case matches a naive mapping exactly. This test locks in the
// formula's actual, literal output — the inverted x term is kept
// exactly as written rather than silently corrected.
func TestHeadingCardinalDirections(t *testing.T) {
	center := image.Pt(500, 500)

	cases := []struct {
		name    string
		marker  image.Point
		heading int
	}{
		{"north", image.Pt(500, 450), 0},
		{"west_by_formula", image.Pt(450, 500), 90},
		{"south", image.Pt(500, 550), 180},
		{"east_by_formula", image.Pt(550, 500), 270},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newBotAt(center)
			require.True(t, r.SetMarker(c.marker))

			got, ok := r.Heading()
			require.True(t, ok, "Heading() should report true once a marker is bound")
			assert.Equal(t, c.heading, got)
		})
	}
}

func TestColorTeamDefaultsAndOverride(t *testing.T) {
	r := newBotAt(image.Pt(500, 500))
	assert.Equal(t, white, r.Color(), "no id yet renders white")

	r.AddIDDot(image.Pt(450, 500))
	r.AddIDDot(image.Pt(420, 500))
	assert.Equal(t, defaultBlue, r.Color(), "id<=4 renders blue")

	for _, p := range []image.Point{{X: 400, Y: 500}, {X: 480, Y: 500}, {X: 510, Y: 500}} {
		r.AddIDDot(p)
	}
	id, _ := r.ID()
	require.Greater(t, id, 4, "test setup expected id > 4")
	assert.Equal(t, defaultRed, r.Color(), "id>4 renders red")

	override := Color{R: 9, G: 9, B: 9}
	r.SetColor(override)
	assert.Equal(t, override, r.Color(), "an explicit override wins over the team colour")
}
