package arena

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/arenaerr"
	"github.com/connectedhumber/arena-locator/internal/camera"
	"github.com/connectedhumber/arena-locator/internal/params"
	"github.com/connectedhumber/arena-locator/internal/robot"
)

func robotColorStub() robot.Color { return robot.Color{R: 7, G: 8, B: 9} }

// fakeSnapshot is a synthetic Snapshot (no camera, no goroutines) that
// serves one fixed BGR frame and one fixed edge map, letting tests
// drive the processor with deterministic synthetic edge maps.
type fakeSnapshot struct {
	bgr        gocv.Mat
	edges      gocv.Mat
	readErr    error
	capCalls   int
	maskCalled bool
}

func (f *fakeSnapshot) ReadBGR() (gocv.Mat, error) {
	if f.readErr != nil {
		return gocv.NewMat(), f.readErr
	}
	return f.bgr.Clone(), nil
}

func (f *fakeSnapshot) ReadSmallEdges() (gocv.Mat, error) { return gocv.NewMat(), nil }

func (f *fakeSnapshot) ReadEdges() (gocv.Mat, error) {
	if f.readErr != nil {
		return gocv.NewMat(), f.readErr
	}
	return f.edges.Clone(), nil
}

func (f *fakeSnapshot) MaskOffset() (image.Point, error) { return image.Point{}, nil }

func (f *fakeSnapshot) SetCap(prop camera.Property, value float64) bool {
	f.capCalls++
	return true
}

func (f *fakeSnapshot) MakeMask(w, h int) { f.maskCalled = true }

const canvasSize = 1000

func blankCanvas() gocv.Mat {
	m := gocv.NewMatWithSize(canvasSize, canvasSize, gocv.MatTypeCV8UC1)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return m
}

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// newBotScene draws one square bot outline (unfilled, so it is the
// sole external contour) at rect, plus a direction marker and a set of
// identity dots, all strictly inside the outline so the tree-mode pass
// finds them as separate nested contours.
func newBotScene(rect image.Rectangle, marker image.Point, dots []image.Point) (bgr, edges gocv.Mat) {
	bgr = gocv.NewMatWithSize(canvasSize, canvasSize, gocv.MatTypeCV8UC3)
	edges = blankCanvas()

	gocv.Rectangle(&edges, rect, white, 3)
	gocv.Circle(&edges, marker, 8, white, -1)
	for _, d := range dots {
		gocv.Circle(&edges, d, 3, white, -1)
	}
	return bgr, edges
}

func newTestProcessor(snap *fakeSnapshot) *Processor {
	store := params.New()
	return New(snap, store, nil, false)
}

func TestUpdateDetectsBotWithIdentityAndHeading(t *testing.T) {
	rect := image.Rect(400, 400, 480, 480) // centre ~ (440,440), area 6400
	marker := image.Pt(440, 425)           // north of centre -> literal formula gives heading 0
	dots := []image.Point{{X: 425, Y: 455}, {X: 455, Y: 455}}

	bgr, edges := newBotScene(rect, marker, dots)
	defer bgr.Close()
	defer edges.Close()

	snap := &fakeSnapshot{bgr: bgr, edges: edges}
	p := newTestProcessor(snap)

	annotated, err := p.Update()
	require.NoError(t, err)
	defer annotated.Close()

	robots := p.GetRobots()
	pos, ok := robots[2]
	require.True(t, ok, "expected robot id=2 in %v", robots)
	assert.True(t, pos.HasHead, "expected a bound heading")
	assert.Equal(t, 0, pos.Heading, "marker north of centre")

	scale := params.New().GetFloat(params.CameraScale)
	wantX := int(float64(440) * scale)
	assert.InDelta(t, wantX, pos.XMM, 1)

	assert.True(t, snap.maskCalled, "Update should call MakeMask")
	assert.Greater(t, snap.capCalls, 0, "Update should push camera settings via SetCap")
}

func TestUpdateNotReadyPropagatesError(t *testing.T) {
	snap := &fakeSnapshot{readErr: arenaerr.ErrNotReady}
	p := newTestProcessor(snap)

	_, err := p.Update()
	assert.Error(t, err)
}

func TestFindBotsRejectsTooSmallArea(t *testing.T) {
	rect := image.Rect(400, 400, 420, 420) // 20x20 = 400px^2, below MinBotArea
	bgr, edges := newBotScene(rect, image.Pt(410, 405), nil)
	defer bgr.Close()
	defer edges.Close()

	p := newTestProcessor(&fakeSnapshot{bgr: bgr, edges: edges})
	_, err := p.Update()
	require.NoError(t, err)
	assert.Empty(t, p.Bots(), "under-area contour should be rejected")
}

func TestFindBotsRejectsOutOfRangeAspect(t *testing.T) {
	rect := image.Rect(300, 450, 500, 490) // 200x40, aspect 0.2 < MinBotAspectRatio
	bgr, edges := newBotScene(rect, image.Pt(400, 470), nil)
	defer bgr.Close()
	defer edges.Close()

	p := newTestProcessor(&fakeSnapshot{bgr: bgr, edges: edges})
	_, err := p.Update()
	require.NoError(t, err)
	assert.Empty(t, p.Bots(), "out-of-aspect contour should be rejected")
}

func TestDuplicateContourRejected(t *testing.T) {
	bgr := gocv.NewMatWithSize(canvasSize, canvasSize, gocv.MatTypeCV8UC3)
	edges := blankCanvas()
	defer bgr.Close()
	defer edges.Close()

	outer := image.Rect(400, 400, 480, 480)
	inner := image.Rect(405, 405, 475, 475) // 70x70=4900px^2, clears the area gate; nested inside outer, so the external-contour bot pass never returns it
	gocv.Rectangle(&edges, outer, white, 3)
	gocv.Rectangle(&edges, inner, white, 1)

	p := newTestProcessor(&fakeSnapshot{bgr: bgr, edges: edges})
	_, err := p.Update()
	require.NoError(t, err)
	assert.Len(t, p.Bots(), 1, "the inner duplicate contour should be rejected")
}

func TestSetBotColorOverridePersistsAcrossFrames(t *testing.T) {
	rect := image.Rect(400, 400, 480, 480)
	marker := image.Pt(440, 425)
	dots := []image.Point{{X: 425, Y: 455}, {X: 455, Y: 455}}
	bgr, edges := newBotScene(rect, marker, dots)
	defer bgr.Close()
	defer edges.Close()

	p := newTestProcessor(&fakeSnapshot{bgr: bgr, edges: edges})
	_, err := p.Update()
	require.NoError(t, err)
	_, ok := p.GetRobots()[2]
	require.True(t, ok, "setup: expected robot id 2 before testing color override")

	p.SetBotColor(2, robotColorStub())

	_, err = p.Update()
	require.NoError(t, err)

	var found bool
	for _, b := range p.Bots() {
		if id, ok := b.ID(); ok && id == 2 {
			found = true
			assert.Equal(t, robotColorStub(), b.Color())
		}
	}
	assert.True(t, found, "expected robot id 2 on the second frame")
}
