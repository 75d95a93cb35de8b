package camera

import "gocv.io/x/gocv"

// Fake is a deterministic test double for Device. It serves a fixed
// slice of frames in order (cloning each on Read so callers can Close
// their copy freely) and records property Set calls for assertions.
type Fake struct {
	Frames []gocv.Mat
	pos    int

	props  map[Property]float64
	opened bool
}

// NewFake builds a Fake that is already "open" and will serve frames
// in order, repeating the last frame once the slice is exhausted.
func NewFake(frames []gocv.Mat) *Fake {
	return &Fake{Frames: frames, props: make(map[Property]float64), opened: true}
}

func (f *Fake) Read(dst *gocv.Mat) bool {
	if len(f.Frames) == 0 || !f.opened {
		return false
	}
	src := f.Frames[f.pos]
	if f.pos < len(f.Frames)-1 {
		f.pos++
	}
	src.CopyTo(dst)
	return true
}

func (f *Fake) Get(prop Property) float64 {
	if v, ok := f.props[prop]; ok {
		return v
	}
	return 0
}

func (f *Fake) Set(prop Property, value float64) {
	f.props[prop] = value
}

func (f *Fake) IsOpened() bool { return f.opened }

func (f *Fake) Close() error {
	f.opened = false
	return nil
}
