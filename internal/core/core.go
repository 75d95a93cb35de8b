// Package core implements the process-wide singleton that owns the
// parameter store, frame source, and arena processor, and drives the
// render/publish loop external adapters plug into: a render-rate
// Update() plus a 1Hz GetRobots()-and-publish tick.
package core

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/arena"
	"github.com/connectedhumber/arena-locator/internal/arenaerr"
	"github.com/connectedhumber/arena-locator/internal/camera"
	"github.com/connectedhumber/arena-locator/internal/framesource"
	"github.com/connectedhumber/arena-locator/internal/params"
	"github.com/connectedhumber/arena-locator/internal/robot"
)

// Publisher receives the once-per-second robot snapshot. The bus
// adapter implements this; core has no bus knowledge of its own.
type Publisher interface {
	PublishLocations(robots map[int]arena.RobotPosition)
}

// Core is the C5 singleton.
type Core struct {
	Params    *params.Store
	source    *framesource.Source
	Processor *arena.Processor

	frameMu   sync.RWMutex
	lastFrame gocv.Mat
	hasFrame  bool

	publishInterval time.Duration
}

// Options configures New.
type Options struct {
	CameraIndex   int
	UseSmallEdges bool
	RecordingFPS  int
	Log           *slog.Logger
}

// New opens the camera device, starts the Frame Source, and builds the
// Arena Processor. A camera-open failure is fatal.
func New(store *params.Store, opts Options) (*Core, error) {
	dev, err := camera.Open(opts.CameraIndex)
	if err != nil {
		return nil, err
	}

	src := framesource.New(dev, store, opts.Log)
	src.Start()

	proc := arena.New(src, store, opts.Log, opts.UseSmallEdges)

	return &Core{
		Params:          store,
		source:          src,
		Processor:       proc,
		publishInterval: time.Second,
		lastFrame:       gocv.NewMat(),
	}, nil
}

// SetRecorder wires a scene recorder into the processor.
func (c *Core) SetRecorder(r arena.Recorder) { c.Processor.SetRecorder(r) }

// Update runs one Arena Processor pass and caches the annotated frame
// for the video feed. On error (NotReady included) it returns the error
// and leaves the cached frame untouched; Run ignores the error without
// logging it and tries again on the next tick.
func (c *Core) Update() error {
	frame, err := c.Processor.Update()
	if err != nil {
		return err
	}
	c.frameMu.Lock()
	old := c.lastFrame
	c.lastFrame = frame
	c.hasFrame = true
	c.frameMu.Unlock()
	old.Close()
	return nil
}

// LatestFrame returns a deep copy of the most recently annotated
// scene, for the MJPEG video feed. NotReady if Update has never
// succeeded.
func (c *Core) LatestFrame() (gocv.Mat, error) {
	c.frameMu.RLock()
	defer c.frameMu.RUnlock()
	if !c.hasFrame {
		return gocv.NewMat(), arenaerr.ErrNotReady
	}
	return c.lastFrame.Clone(), nil
}

// GetRobots exposes the processor's latest robot positions.
func (c *Core) GetRobots() map[int]arena.RobotPosition {
	return c.Processor.GetRobots()
}

// SetBotColor/SetBotColors/tuning setters forward to the processor.
func (c *Core) SetBotColor(id int, color robot.Color)         { c.Processor.SetBotColor(id, color) }
func (c *Core) SetBotColors(colors map[int]robot.Color)       { c.Processor.SetBotColors(colors) }
func (c *Core) EnableCrosshairDisplay(on bool)                { c.Processor.EnableCrosshairDisplay(on) }
func (c *Core) EnableMaskDisplay(on bool)                     { c.Processor.EnableMaskDisplay(on) }
func (c *Core) EnableScaleDisplay(on bool)                    { c.Processor.EnableScaleDisplay(on) }

// Run drives the render loop at tickInterval and calls pub.PublishLocations
// once every publishInterval (1s). It blocks until ctx is cancelled.
func (c *Core) Run(ctx context.Context, tickInterval time.Duration, pub Publisher) {
	renderTicker := time.NewTicker(tickInterval)
	defer renderTicker.Stop()
	publishTicker := time.NewTicker(c.publishInterval)
	defer publishTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-renderTicker.C:
			if err := c.Update(); err != nil {
				continue
			}
		case <-publishTicker.C:
			if pub != nil {
				pub.PublishLocations(c.GetRobots())
			}
		}
	}
}

// MaskOffset exposes the current ROI offset, used by diagnostics that
// want to translate full-frame coordinates back to ROI-local ones.
func (c *Core) MaskOffset() (image.Point, error) {
	return c.source.MaskOffset()
}

// Stop releases the Frame Source (camera device + both workers).
func (c *Core) Stop() {
	c.source.Stop()
	c.frameMu.Lock()
	c.lastFrame.Close()
	c.frameMu.Unlock()
}
