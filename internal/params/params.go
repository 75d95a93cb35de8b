// Package params implements an in-memory, thread-safe store of named
// tuning constants (camera properties, detection thresholds, size
// bounds) with JSON load/save so operator tuning survives a restart.
package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Parameter name constants double as the JSON keys in the persisted
// settings file, so renaming one breaks compatibility with existing
// saved files.
const (
	CameraScale        = "CAMERA_SCALE"
	CameraBrightness   = "CAMERA_BRIGHTNESS"
	CameraContrast     = "CAMERA_CONTRAST"
	CameraSaturation   = "CAMERA_SATURATION"
	CameraExposure     = "CAMERA_EXPOSURE"
	CameraAutoExposure = "CAMERA_AUTO_EXPOSURE"
	CameraISOSpeed     = "CAMERA_ISO_SPEED"

	ThreshMin           = "THRESH_MIN"
	CannyMin            = "CANNY_MIN"
	CannyMax            = "CANNY_MAX"
	AfterCannyThreshMin = "AFTER_CANNY_THRESH_MIN"

	// Area+aspect bounds gate candidate bot contours: area alone can't
	// distinguish an elongated chassis from a square one, so both are
	// checked.
	MinBotArea         = "MIN_BOT_AREA"
	MaxBotArea         = "MAX_BOT_AREA"
	MinBotAspectRatio  = "MIN_BOT_ASPECT_RATIO"
	MaxBotAspectRatio  = "MAX_BOT_ASPECT_RATIO"

	MinDotR      = "MIN_DOT_R"
	MaxDotR      = "MAX_DOT_R"
	MinDirectorR = "MIN_DIRECTOR_R"
	MaxDirectorR = "MAX_DIRECTOR_R"

	FrameWidth     = "FRAME_WIDTH"
	FrameHeight    = "FRAME_HEIGHT"
	ArenaMaskSize  = "ARENA_MASK_SIZE"  // [w, h]
	ScaleRectSize  = "SCALE_RECT_SIZE"  // [w, h] mm, A4 calibration target
)

// Jitter is the positional deduplication radius for markers and
// identity dots; it is a constant of the design, not a tunable
// parameter.
const Jitter = 10.0

// baselineFrameWidth is the capture resolution the default dot/director
// radius bounds and bot area bounds were authored against. Detection
// size bounds scale with frame width relative to this baseline.
const baselineFrameWidth = 1920.0

// defaults holds the factory value for every known parameter. Values
// are either float64 (scalars) or [2]float64 (the two size tuples).
var defaults = map[string]any{
	CameraScale:        1.32,
	CameraBrightness:   4.0,
	CameraContrast:     100.0,
	CameraSaturation:   16.0,
	CameraExposure:     32.0,
	CameraAutoExposure: 0.0,
	CameraISOSpeed:     2.0,

	ThreshMin:           100.0,
	CannyMin:            100.0,
	CannyMax:            200.0,
	AfterCannyThreshMin: 100.0,

	// Chosen so a roughly-square contour between 60x60 and 150x150 px
	// qualifies at the baseline frame width.
	MinBotArea:        3600.0,
	MaxBotArea:        22500.0,
	MinBotAspectRatio: 0.5,
	MaxBotAspectRatio: 1.0,

	MinDotR:      1.0,
	MaxDotR:      5.0,
	MinDirectorR: 6.0,
	MaxDirectorR: 10.0,

	FrameWidth:  1920.0,
	FrameHeight: 1080.0,

	ArenaMaskSize: [2]float64{597, 420},
	ScaleRectSize: [2]float64{297, 210},
}

// Store is the Parameter Store. Zero value is not usable; use New.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns a Store pre-populated with defaults.
func New() *Store {
	s := &Store{values: make(map[string]any, len(defaults))}
	s.RestoreDefaults()
	return s
}

// RestoreDefaults overwrites every value with its default.
func (s *Store) RestoreDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range defaults {
		s.values[k] = v
	}
}

// Get returns the current value for name, falling back to the default
// table. A name absent from both the live map and the default table is
// a programmer error and panics.
func (s *Store) Get(name string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[name]; ok {
		return v
	}
	v, ok := defaults[name]
	if !ok {
		panic(fmt.Sprintf("params: unknown parameter %q", name))
	}
	return v
}

// GetFloat is a convenience wrapper over Get for scalar parameters.
func (s *Store) GetFloat(name string) float64 {
	v := s.Get(name)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		panic(fmt.Sprintf("params: %q is not a scalar", name))
	}
}

// GetInt truncates GetFloat for parameters that are conceptually
// integral (frame dimensions, camera properties).
func (s *Store) GetInt(name string) int {
	return int(s.GetFloat(name))
}

// GetSize returns a two-element size parameter (ARENA_MASK_SIZE,
// SCALE_RECT_SIZE) as (w, h).
func (s *Store) GetSize(name string) (w, h int) {
	v := s.Get(name)
	switch t := v.(type) {
	case [2]float64:
		return int(t[0]), int(t[1])
	case []any:
		if len(t) != 2 {
			panic(fmt.Sprintf("params: %q is not a 2-tuple", name))
		}
		return int(toFloat(t[0])), int(toFloat(t[1]))
	case []float64:
		if len(t) != 2 {
			panic(fmt.Sprintf("params: %q is not a 2-tuple", name))
		}
		return int(t[0]), int(t[1])
	default:
		panic(fmt.Sprintf("params: %q is not a size tuple", name))
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		panic("params: expected numeric value")
	}
}

// Set stores value under name. No range validation is performed here;
// that is a caller concern. Setting FrameWidth rescales the dot,
// director, and bot-area bounds so detection stays resolution-
// independent.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()

	if name == FrameWidth {
		s.rescaleForFrameWidth(toFloat(value))
	}
}

func (s *Store) rescaleForFrameWidth(width float64) {
	ratio := width / baselineFrameWidth

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range []string{MinDotR, MaxDotR, MinDirectorR, MaxDirectorR} {
		base := toFloat(defaults[k])
		s.values[k] = base * ratio
	}
	for _, k := range []string{MinBotArea, MaxBotArea} {
		base := toFloat(defaults[k])
		s.values[k] = base * ratio * ratio
	}
}

// Load reads the parameter file. Unknown keys in the file are ignored;
// keys absent from the file keep their current (default) value. A
// missing or unparsable file is reported as an error but does not
// mutate the store — callers that want Python's "fall back to
// defaults entirely" behaviour can follow a failed Load with
// RestoreDefaults.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("params: read %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("params: parse %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range raw {
		if _, known := defaults[k]; !known {
			continue // unknown keys on load are ignored
		}
		s.values[k] = v
	}
	return nil
}

// Save atomically rewrites the parameter file: write to a temp file in
// the same directory, then rename over the destination.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	data, err := json.Marshal(s.values)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("params: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".params-*.tmp")
	if err != nil {
		return fmt.Errorf("params: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("params: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("params: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("params: rename into place: %w", err)
	}
	return nil
}
