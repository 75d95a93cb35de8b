// Package recorder implements the optional scene recording step of
// §4.4 ("if recording is enabled, write scene to video file"),
// writing to a local file via gocv.VideoWriter and handing finished
// clips off to object storage.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// ClipUploader is the subset of storage.ClipStore the recorder needs,
// kept as an interface so tests can run without a real MinIO backend.
type ClipUploader interface {
	UploadClip(ctx context.Context, key, localPath string) error
}

// Recorder implements arena.Recorder, writing frames to a rotating
// local file and uploading each finished clip.
type Recorder struct {
	uploader ClipUploader
	log      *slog.Logger
	tmpDir   string
	fps      float64
	width    int
	height   int

	writer    *gocv.VideoWriter
	localPath string
	started   time.Time

	clipDuration time.Duration
}

// New builds a Recorder that rotates clips every clipDuration.
func New(uploader ClipUploader, log *slog.Logger, tmpDir string, fps float64, width, height int, clipDuration time.Duration) *Recorder {
	return &Recorder{
		uploader:     uploader,
		log:          log,
		tmpDir:       tmpDir,
		fps:          fps,
		width:        width,
		height:       height,
		clipDuration: clipDuration,
	}
}

// Write appends one annotated frame to the current clip, rotating to a
// new file (and uploading the finished one) once clipDuration elapses.
func (r *Recorder) Write(frame gocv.Mat) error {
	if r.writer == nil {
		if err := r.rotate(); err != nil {
			return err
		}
	} else if time.Since(r.started) >= r.clipDuration {
		r.closeCurrent()
		if err := r.rotate(); err != nil {
			return err
		}
	}
	return r.writer.Write(frame)
}

func (r *Recorder) rotate() error {
	name := fmt.Sprintf("arena-%s.mp4", uuid.NewString())
	path := filepath.Join(r.tmpDir, name)

	writer, err := gocv.VideoWriterFile(path, "mp4v", r.fps, r.width, r.height, true)
	if err != nil {
		return fmt.Errorf("recorder: open video writer: %w", err)
	}
	r.writer = writer
	r.localPath = path
	r.started = time.Now()
	return nil
}

func (r *Recorder) closeCurrent() {
	if r.writer == nil {
		return
	}
	r.writer.Close()
	path := r.localPath
	r.writer = nil
	r.localPath = ""

	go func() {
		key := filepath.Base(path)
		if err := r.uploader.UploadClip(context.Background(), key, path); err != nil {
			r.log.Error("clip upload failed", "path", path, "error", err)
			os.Remove(path)
		}
	}()
}

// Close closes the in-progress clip and starts its upload in the
// background; it returns without waiting for the upload to finish.
func (r *Recorder) Close() {
	r.closeCurrent()
}
