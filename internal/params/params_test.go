package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasDefaults(t *testing.T) {
	s := New()
	assert.Equal(t, 1.32, s.GetFloat(CameraScale))

	w, h := s.GetSize(ArenaMaskSize)
	assert.Equal(t, 597, w)
	assert.Equal(t, 420, h)
}

func TestGetUnknownParameterPanics(t *testing.T) {
	s := New()
	assert.Panics(t, func() { s.Get("NOT_A_REAL_PARAM") })
}

func TestSetFrameWidthRescalesFeatureSizes(t *testing.T) {
	s := New()
	baseMinDotR := s.GetFloat(MinDotR)
	baseMinBotArea := s.GetFloat(MinBotArea)

	s.Set(FrameWidth, 960.0) // half the 1920 baseline

	assert.Equal(t, baseMinDotR*0.5, s.GetFloat(MinDotR), "linear rescale for radii")
	assert.Equal(t, baseMinBotArea*0.25, s.GetFloat(MinBotArea), "quadratic rescale for area")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Settings.json")

	s := New()
	s.Set(CameraScale, 2.5)
	s.Set(ThreshMin, 77.0)
	require.NoError(t, s.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2.5, loaded.GetFloat(CameraScale))
	assert.Equal(t, 77.0, loaded.GetFloat(ThreshMin))
}

func TestLoadIgnoresUnknownKeysAndKeepsMissingAtDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"CAMERA_SCALE": 9.9, "SOME_FUTURE_PARAM": 1}`), 0o644))

	s := New()
	defaultThresh := s.GetFloat(ThreshMin)

	require.NoError(t, s.Load(path))
	assert.Equal(t, 9.9, s.GetFloat(CameraScale))
	assert.Equal(t, defaultThresh, s.GetFloat(ThreshMin), "missing key keeps its current value")

	// An unknown key from the file is never stored, so reading it back
	// as a parameter name still panics.
	assert.Panics(t, func() { s.Get("SOME_FUTURE_PARAM") })
}

func TestLoadMissingFileReturnsErrorWithoutMutating(t *testing.T) {
	s := New()
	before := s.GetFloat(CameraScale)

	err := s.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
	assert.Equal(t, before, s.GetFloat(CameraScale))
}
