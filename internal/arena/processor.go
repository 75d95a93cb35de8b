// Package arena implements the one-frame pipeline that turns a
// captured snapshot into a set of robot records plus an annotated
// scene.
package arena

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/arenaerr"
	"github.com/connectedhumber/arena-locator/internal/camera"
	"github.com/connectedhumber/arena-locator/internal/observability"
	"github.com/connectedhumber/arena-locator/internal/params"
	"github.com/connectedhumber/arena-locator/internal/robot"
)

// Snapshot is the subset of framesource.Source's surface the processor
// depends on. Declaring it here (rather than importing framesource
// directly) lets tests feed synthetic edge maps without a real camera
// or background goroutines.
type Snapshot interface {
	ReadBGR() (gocv.Mat, error)
	ReadSmallEdges() (gocv.Mat, error)
	ReadEdges() (gocv.Mat, error)
	MaskOffset() (image.Point, error)
	SetCap(prop camera.Property, value float64) bool
	MakeMask(w, h int)
}

// RobotPosition is one entry of GetRobots()'s result.
type RobotPosition struct {
	XMM, YMM int
	Heading  int
	HasHead  bool
}

// Processor is the Arena Processor (C4).
type Processor struct {
	source        Snapshot
	params        *params.Store
	log           *slog.Logger
	useSmallEdges bool

	botsFound []*robot.Record

	showCrosshairs bool
	showMask       bool
	showScale      bool

	colorMu        sync.Mutex
	colorOverrides map[int]robot.Color

	continuity *Continuity
	recorder   Recorder
}

// Recorder abstracts "write scene to video file", kept as an interface
// so the processor does not depend on the concrete clip-storage
// backend.
type Recorder interface {
	Write(frame gocv.Mat) error
}

// New builds a Processor reading frames from source.
func New(source Snapshot, store *params.Store, log *slog.Logger, useSmallEdges bool) *Processor {
	return &Processor{
		source:         source,
		params:         store,
		log:            log,
		useSmallEdges:  useSmallEdges,
		colorOverrides: make(map[int]robot.Color),
		continuity:     NewContinuity(),
	}
}

// SetRecorder attaches a scene recorder; nil disables recording.
func (p *Processor) SetRecorder(r Recorder) { p.recorder = r }

// Update runs one full pipeline pass and returns an annotated copy of
// the scene. NotReady is returned if the Frame Source has no snapshot
// yet.
func (p *Processor) Update() (gocv.Mat, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("arena_processor").Observe(time.Since(start).Seconds())
	}()

	p.pushCameraSettings()
	maskW, maskH := p.params.GetSize(params.ArenaMaskSize)
	p.source.MakeMask(maskW, maskH)

	scene, err := p.source.ReadBGR()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("arena: read scene: %w", arenaerr.ErrNotReady)
	}
	defer scene.Close()

	var edges gocv.Mat
	if p.useSmallEdges {
		edges, err = p.source.ReadSmallEdges()
	} else {
		edges, err = p.source.ReadEdges()
	}
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("arena: read edges: %w", arenaerr.ErrNotReady)
	}
	defer edges.Close()

	offset := image.Point{}
	if p.useSmallEdges {
		if o, err := p.source.MaskOffset(); err == nil {
			offset = o
		}
	}

	p.botsFound = nil
	p.findBots(edges, offset)
	p.bindMarkersAndDots(edges, offset)
	p.applyColorOverrides()

	observability.RobotsDetected.Set(float64(len(p.botsFound)))
	withID := 0
	for _, b := range p.botsFound {
		if _, ok := b.ID(); ok {
			withID++
		}
	}
	observability.RobotsWithIdentity.Set(float64(withID))
	observability.FramesProcessed.Inc()
	p.continuity.Observe(p.botsFound)

	annotated := scene.Clone()
	p.annotate(&annotated)

	if p.recorder != nil {
		if err := p.recorder.Write(annotated); err != nil {
			p.log.Debug("recorder write failed", "error", err)
		}
	}

	return annotated, nil
}

// pushCameraSettings forwards the current camera tuning parameters to
// the Frame Source's device, in case a tuning GUI changed them.
func (p *Processor) pushCameraSettings() {
	p.source.SetCap(camera.PropBrightness, p.params.GetFloat(params.CameraBrightness))
	p.source.SetCap(camera.PropContrast, p.params.GetFloat(params.CameraContrast))
	p.source.SetCap(camera.PropSaturation, p.params.GetFloat(params.CameraSaturation))
	p.source.SetCap(camera.PropExposure, p.params.GetFloat(params.CameraExposure))
	p.source.SetCap(camera.PropAutoExposure, p.params.GetFloat(params.CameraAutoExposure))
	p.source.SetCap(camera.PropISOSpeed, p.params.GetFloat(params.CameraISOSpeed))
}

// findBots is the bot pass: external contours only, area/aspect gated,
// duplicate-suppressed by enclosing-circle containment.
func (p *Processor) findBots(edges gocv.Mat, offset image.Point) {
	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := p.params.GetFloat(params.MinBotArea)
	maxArea := p.params.GetFloat(params.MaxBotArea)
	minAspect := p.params.GetFloat(params.MinBotAspectRatio)
	maxAspect := p.params.GetFloat(params.MaxBotAspectRatio)

	for i := 0; i < contours.Size(); i++ {
		pv := contours.At(i)

		rect := gocv.MinAreaRect(pv)
		side1, side2 := rect.Width, rect.Height
		aspect := 1.0
		if side1 != 0 && side2 != 0 {
			aspect = math.Min(side1, side2) / math.Max(side1, side2)
		}
		area := side1 * side2

		if aspect < minAspect || aspect > maxAspect {
			continue
		}
		if area < minArea || area > maxArea {
			continue
		}

		cx, cy, _ := gocv.MinEnclosingCircle(pv)
		centre := image.Pt(int(cx)+offset.X, int(cy)+offset.Y)

		verts := make([]image.Point, len(rect.Contour))
		for j, v := range rect.Contour {
			verts[j] = image.Pt(v.X+offset.X, v.Y+offset.Y)
		}

		if p.duplicateOf(centre) {
			continue
		}

		rec := robot.New()
		rec.SetLocation(centre)
		rec.SetContour(verts)
		p.botsFound = append(p.botsFound, rec)
	}
}

// duplicateOf reports whether centre falls inside an already-found
// bot's contour, rejecting overlapping outlines of the same chassis.
// Nested contours never reach it: the bot pass retrieves external
// contours only.
func (p *Processor) duplicateOf(centre image.Point) bool {
	for _, b := range p.botsFound {
		if b.ContourContains(centre) {
			return true
		}
	}
	return false
}

// bindMarkersAndDots is the marker+dot pass: tree-mode contours, two
// separate sub-passes over the same contour list. A contour bound as a
// marker is not excluded from the dot sub-pass; a director stays out
// of the dots only while the director and dot radius bands do not
// overlap (the defaults are disjoint).
func (p *Processor) bindMarkersAndDots(edges gocv.Mat, offset image.Point) {
	contours := gocv.FindContours(edges, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	minDirector := p.params.GetFloat(params.MinDirectorR)
	maxDirector := p.params.GetFloat(params.MaxDirectorR)
	minDot := p.params.GetFloat(params.MinDotR)
	maxDot := p.params.GetFloat(params.MaxDotR)

	// First sub-pass: directors.
	for i := 0; i < contours.Size(); i++ {
		pv := contours.At(i)
		cx, cy, r := gocv.MinEnclosingCircle(pv)
		if float64(r) < minDirector || float64(r) > maxDirector {
			continue
		}
		pt := image.Pt(int(cx)+offset.X, int(cy)+offset.Y)
		for _, b := range p.botsFound {
			if b.SetMarker(pt) {
				break
			}
		}
	}

	// Second sub-pass: identity dots (separate traversal).
	for i := 0; i < contours.Size(); i++ {
		pv := contours.At(i)
		cx, cy, r := gocv.MinEnclosingCircle(pv)
		if float64(r) < minDot || float64(r) > maxDot {
			continue
		}
		pt := image.Pt(int(cx)+offset.X, int(cy)+offset.Y)
		for _, b := range p.botsFound {
			if b.AddIDDot(pt) {
				break
			}
		}
	}
}

// GetRobots converts each found bot's pixel location to millimetres
// and pairs it with the derived heading. Robots with no id are
// omitted.
func (p *Processor) GetRobots() map[int]RobotPosition {
	scale := p.params.GetFloat(params.CameraScale)
	out := make(map[int]RobotPosition)
	for _, b := range p.botsFound {
		id, ok := b.ID()
		if !ok {
			continue
		}
		loc := b.Location()
		heading, hasHead := b.Heading()
		out[id] = RobotPosition{
			XMM:     int(math.Round(float64(loc.X) * scale)),
			YMM:     int(math.Round(float64(loc.Y) * scale)),
			Heading: heading,
			HasHead: hasHead,
		}
	}
	return out
}

// Bots exposes the current frame's records, read-only, for the
// continuity diagnostic and for overlay rendering.
func (p *Processor) Bots() []*robot.Record { return p.botsFound }

// --- tuning setters, forwarding to the parameter store ---

func (p *Processor) SetDotSize(min, max float64) {
	p.params.Set(params.MinDotR, min)
	p.params.Set(params.MaxDotR, max)
}

func (p *Processor) SetDirectorSize(min, max float64) {
	p.params.Set(params.MinDirectorR, min)
	p.params.Set(params.MaxDirectorR, max)
}

func (p *Processor) SetBotArea(min, max float64) {
	p.params.Set(params.MinBotArea, min)
	p.params.Set(params.MaxBotArea, max)
}

func (p *Processor) SetBotAspect(min, max float64) {
	p.params.Set(params.MinBotAspectRatio, min)
	p.params.Set(params.MaxBotAspectRatio, max)
}

func (p *Processor) EnableCrosshairDisplay(on bool) { p.showCrosshairs = on }
func (p *Processor) EnableMaskDisplay(on bool)       { p.showMask = on }
func (p *Processor) EnableScaleDisplay(on bool)      { p.showScale = on }

// SetBotColor overrides the render colour for one robot id, persisting
// across frames (a Record itself only lives one frame).
func (p *Processor) SetBotColor(id int, c robot.Color) {
	p.colorMu.Lock()
	p.colorOverrides[id] = c
	p.colorMu.Unlock()
}

// SetBotColors replaces the whole override map.
func (p *Processor) SetBotColors(colors map[int]robot.Color) {
	p.colorMu.Lock()
	p.colorOverrides = colors
	p.colorMu.Unlock()
}

func (p *Processor) applyColorOverrides() {
	p.colorMu.Lock()
	defer p.colorMu.Unlock()
	if len(p.colorOverrides) == 0 {
		return
	}
	for _, b := range p.botsFound {
		id, ok := b.ID()
		if !ok {
			continue
		}
		if c, ok := p.colorOverrides[id]; ok {
			b.SetColor(c)
		}
	}
}
