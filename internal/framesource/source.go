// Package framesource implements a producer goroutine that always
// holds the newest camera frame, and a processor goroutine that
// derives a coherent five-image snapshot (bgr, gray, thresh,
// edges_small, edges_full) from it. Two locks are never held together:
// bgrLock guards the raw capture handoff, updateLock guards the
// published snapshot, so a slow consumer never blocks the producer.
package framesource

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/arenaerr"
	"github.com/connectedhumber/arena-locator/internal/camera"
	"github.com/connectedhumber/arena-locator/internal/observability"
	"github.com/connectedhumber/arena-locator/internal/params"
)

// Snapshot is a coherent five-image group. All
// fields derive from the same captured bgr frame. The Source's Read*
// methods each return a deep copy of one field; callers own that Mat
// and must Close it.
type Snapshot struct {
	BGR        gocv.Mat
	Gray       gocv.Mat
	Thresh     gocv.Mat
	EdgesSmall gocv.Mat
	EdgesFull  gocv.Mat
	MaskOffset image.Point
}

// Close releases every Mat in the snapshot. Safe to call on a zero
// Snapshot (closed Mats are no-ops in gocv).
func (s *Snapshot) Close() {
	s.BGR.Close()
	s.Gray.Close()
	s.Thresh.Close()
	s.EdgesSmall.Close()
	s.EdgesFull.Close()
}

func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		BGR:        s.BGR.Clone(),
		Gray:       s.Gray.Clone(),
		Thresh:     s.Thresh.Clone(),
		EdgesSmall: s.EdgesSmall.Clone(),
		EdgesFull:  s.EdgesFull.Clone(),
		MaskOffset: s.MaskOffset,
	}
}

// Source is the Frame Source. Construct with New, then Start it; Stop
// releases the camera device and both goroutines.
type Source struct {
	device camera.Device
	params *params.Store
	log    *slog.Logger

	tickInterval time.Duration

	bgrLock sync.Mutex
	bgrCam  gocv.Mat
	hasCam  bool

	maskLock  sync.Mutex
	maskW     int
	maskH     int

	updateLock sync.RWMutex
	current    *Snapshot

	stop    chan struct{}
	wg      sync.WaitGroup
	stopped bool
	mu      sync.Mutex // guards stopped/stop close-once
}

// New constructs a Source bound to an already-open camera device. It
// does not start the background workers — call Start.
func New(dev camera.Device, store *params.Store, log *slog.Logger) *Source {
	w, h := store.GetSize(params.ArenaMaskSize)
	return &Source{
		device:       dev,
		params:       store,
		log:          log,
		tickInterval: 33 * time.Millisecond,
		bgrCam:       gocv.NewMat(),
		maskW:        w,
		maskH:        h,
		stop:         make(chan struct{}),
	}
}

// Start launches the producer and processor goroutines.
func (s *Source) Start() {
	s.wg.Add(2)
	go s.collectBGR()
	go s.processBGR()
}

// Stop signals both workers and blocks until they exit, then releases
// the camera device and any held Mats. Release is an alias.
func (s *Source) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()

	s.bgrLock.Lock()
	s.bgrCam.Close()
	s.bgrLock.Unlock()

	s.updateLock.Lock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	s.updateLock.Unlock()

	s.device.Close()
}

// Release is an alias for Stop.
func (s *Source) Release() { s.Stop() }

func (s *Source) isStopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// collectBGR is T1: it repeatedly captures the newest frame into
// bgrCam. It never blocks on the processor — a slow processor simply
// sees a newer frame on its next clone.
func (s *Source) collectBGR() {
	defer s.wg.Done()
	frame := gocv.NewMat()
	defer frame.Close()

	for !s.isStopping() {
		if ok := s.device.Read(&frame); !ok || frame.Empty() {
			observability.CaptureFailures.Inc()
			s.log.Debug("camera read failed, retrying")
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.bgrLock.Lock()
		frame.CopyTo(&s.bgrCam)
		s.hasCam = true
		s.bgrLock.Unlock()
	}
}

// processBGR is T2: clone the latest raw frame, derive gray/thresh/edges
// over the mask ROI, and publish the group atomically.
func (s *Source) processBGR() {
	defer s.wg.Done()

	for !s.isStopping() {
		start := time.Now()

		s.bgrLock.Lock()
		ready := s.hasCam
		var bgr gocv.Mat
		if ready {
			bgr = s.bgrCam.Clone()
		}
		s.bgrLock.Unlock()

		if !ready {
			time.Sleep(s.tickInterval)
			continue
		}

		snap, err := s.derive(bgr)
		bgr.Close()
		if err != nil {
			s.log.Error("frame source processing failed", "error", err)
			time.Sleep(s.tickInterval)
			continue
		}

		s.updateLock.Lock()
		old := s.current
		s.current = snap
		s.updateLock.Unlock()
		if old != nil {
			old.Close()
		}

		observability.StageDuration.WithLabelValues("frame_source").Observe(time.Since(start).Seconds())

		select {
		case <-s.stop:
			return
		case <-time.After(s.tickInterval):
		}
	}
}

// derive runs the grayscale/threshold/Canny pipeline against an owned
// bgr Mat. The caller retains ownership of bgr; derive clones what it
// needs into the returned Snapshot.
func (s *Source) derive(bgr gocv.Mat) (*Snapshot, error) {
	w, h := bgr.Cols(), bgr.Rows()

	s.maskLock.Lock()
	maskW, maskH := s.maskW, s.maskH
	s.maskLock.Unlock()

	roiW := minInt(maskW, w)
	roiH := minInt(maskH, h)
	x1 := (w - roiW) / 2
	y1 := (h - roiH) / 2
	roi := image.Rect(x1, y1, x1+roiW, y1+roiH)

	cropped := bgr.Region(roi)
	defer cropped.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(cropped, &gray, gocv.ColorBGRToGray)

	threshMin := s.params.GetFloat(params.ThreshMin)
	thresh := gocv.NewMat()
	gocv.Threshold(gray, &thresh, float32(threshMin), 255, gocv.ThresholdBinary)

	cannyMin := s.params.GetFloat(params.CannyMin)
	cannyMax := s.params.GetFloat(params.CannyMax)
	edgesSmall := gocv.NewMat()
	gocv.Canny(thresh, &edgesSmall, float32(cannyMin), float32(cannyMax))

	if after := s.params.GetFloat(params.AfterCannyThreshMin); after > 0 {
		clamped := clampF(after, 0, 255)
		gocv.Threshold(edgesSmall, &edgesSmall, float32(clamped), 255, gocv.ThresholdBinary)
	}

	edgesFull := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	edgesFull.SetTo(gocv.NewScalar(0, 0, 0, 0))
	edgesFullROI := edgesFull.Region(roi)
	edgesSmall.CopyTo(&edgesFullROI)
	edgesFullROI.Close()

	return &Snapshot{
		BGR:        bgr.Clone(),
		Gray:       gray,
		Thresh:     thresh,
		EdgesSmall: edgesSmall,
		EdgesFull:  edgesFull,
		MaskOffset: image.Pt(x1, y1),
	}, nil
}

// ReadBGR returns a deep copy of the most recent color frame.
func (s *Source) ReadBGR() (gocv.Mat, error) { return s.readField(func(s *Snapshot) gocv.Mat { return s.BGR }) }

// ReadGray returns a deep copy of the most recent grayscale ROI.
func (s *Source) ReadGray() (gocv.Mat, error) { return s.readField(func(s *Snapshot) gocv.Mat { return s.Gray }) }

// ReadThresh returns a deep copy of the most recent thresholded ROI.
func (s *Source) ReadThresh() (gocv.Mat, error) { return s.readField(func(s *Snapshot) gocv.Mat { return s.Thresh }) }

// ReadSmallEdges returns a deep copy of the ROI-sized edge map.
func (s *Source) ReadSmallEdges() (gocv.Mat, error) {
	return s.readField(func(s *Snapshot) gocv.Mat { return s.EdgesSmall })
}

// ReadEdges returns a deep copy of the full-frame edge map (edges_small
// blitted back at mask_offset over an otherwise black frame).
func (s *Source) ReadEdges() (gocv.Mat, error) {
	return s.readField(func(s *Snapshot) gocv.Mat { return s.EdgesFull })
}

// MaskOffset returns the ROI top-left of the most recent snapshot.
func (s *Source) MaskOffset() (image.Point, error) {
	s.updateLock.RLock()
	defer s.updateLock.RUnlock()
	if s.current == nil {
		return image.Point{}, arenaerr.ErrNotReady
	}
	return s.current.MaskOffset, nil
}

func (s *Source) readField(pick func(*Snapshot) gocv.Mat) (gocv.Mat, error) {
	s.updateLock.RLock()
	defer s.updateLock.RUnlock()
	if s.current == nil {
		return gocv.NewMat(), arenaerr.ErrNotReady
	}
	return pick(s.current).Clone(), nil
}

// SetCap forwards a camera property change to the device.
func (s *Source) SetCap(prop camera.Property, value float64) bool {
	return camera.SetProp(s.device, prop, value)
}

// SetThreshold updates THRESH_MIN.
func (s *Source) SetThreshold(v float64) { s.params.Set(params.ThreshMin, v) }

// SetAfterCannyThreshold updates AFTER_CANNY_THRESH_MIN, clamped to [0,255].
func (s *Source) SetAfterCannyThreshold(v float64) {
	s.params.Set(params.AfterCannyThreshMin, clampF(v, 0, 255))
}

// SetCannyMin/SetCannyMax update the Canny thresholds.
func (s *Source) SetCannyMin(v float64) { s.params.Set(params.CannyMin, v) }
func (s *Source) SetCannyMax(v float64) { s.params.Set(params.CannyMax, v) }

// MakeMask stores the ROI rectangle centred in the frame (or the whole
// frame if the requested mask is at least as large); takes effect on
// the next processor iteration.
func (s *Source) MakeMask(w, h int) {
	s.maskLock.Lock()
	s.maskW, s.maskH = w, h
	s.maskLock.Unlock()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
