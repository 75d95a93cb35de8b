// Package camera wraps the physical capture device behind a small
// interface so the producer loop can run against a real webcam
// (gocv.VideoCapture) or against a fake source in tests.
package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/arenaerr"
)

// Property is a VideoCapture property id (brightness, exposure, ...).
type Property = gocv.VideoCaptureProperties

// CV2-style property ids for the capture properties this system tunes.
const (
	PropBrightness   = gocv.VideoCaptureBrightness
	PropContrast     = gocv.VideoCaptureContrast
	PropSaturation   = gocv.VideoCaptureSaturation
	PropExposure     = gocv.VideoCaptureExposure
	PropAutoExposure = gocv.VideoCaptureAutoExposure
	PropISOSpeed     = gocv.VideoCaptureISOSpeed
	PropFrameWidth   = gocv.VideoCaptureFrameWidth
	PropFrameHeight  = gocv.VideoCaptureFrameHeight
)

// Device is the capture device surface the Frame Source depends on.
// gocv.VideoCapture satisfies it; Fake (fake.go) provides a
// deterministic double for tests.
type Device interface {
	Read(dst *gocv.Mat) bool
	Get(prop Property) float64
	Set(prop Property, value float64)
	IsOpened() bool
	Close() error
}

// Open starts capture from the given device index. A device that
// fails to open is CameraUnavailable — fatal at startup.
func Open(index int) (Device, error) {
	dev, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", arenaerr.ErrCameraUnavailable, index, err)
	}
	if !dev.IsOpened() {
		dev.Close()
		return nil, fmt.Errorf("%w: device %d did not open", arenaerr.ErrCameraUnavailable, index)
	}
	return dev, nil
}

// SetProp forwards a property set to the device, first probing whether
// the device even reports the property (Get returning -1 conventionally
// means "unsupported" for OpenCV backends). Returns false only for an
// unsupported property; Device.Set reports no result, so a set that
// the device ignores or fails still returns true.
func SetProp(dev Device, prop Property, value float64) bool {
	if dev.Get(prop) == -1 {
		return false
	}
	dev.Set(prop, value)
	return true
}
