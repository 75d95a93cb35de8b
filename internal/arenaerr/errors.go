// Package arenaerr defines the sentinel error values shared across the
// locator core: CameraUnavailable, NotReady, AlreadySet, Rejected.
// UnknownParameter is not here — it is a programmer error and is
// raised as a panic by the parameter store instead of returned as an
// error.
package arenaerr

import "errors"

var (
	// ErrCameraUnavailable is fatal at startup and retriable at runtime.
	ErrCameraUnavailable = errors.New("arena: camera unavailable")

	// ErrNotReady means the frame source has not produced a snapshot yet.
	ErrNotReady = errors.New("arena: frame source not ready")

	// ErrAlreadySet is returned when a once-only Robot Record field is
	// set a second time (e.g. SetLocation).
	ErrAlreadySet = errors.New("arena: already set")

	// ErrRejected covers contour/aspect/area/duplicate rejections.
	// Most call sites prefer the plain boolean return; this exists for
	// callers that want an error-typed view.
	ErrRejected = errors.New("arena: rejected")
)
