package httpserver

import (
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/core"
)

const (
	boundary    = "frame"
	maxFeedWide = 640
)

// VideoFeed streams GET /video_feed as multipart/x-mixed-replace
// JPEGs, scaled to at most maxFeedWide pixels wide with aspect
// preserved.
func VideoFeed(c *core.Core) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		w := ctx.Writer
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
		w.WriteHeader(http.StatusOK)

		flusher, ok := w.(http.Flusher)
		if !ok {
			return
		}

		ticker := time.NewTicker(33 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Request.Context().Done():
				return
			case <-ticker.C:
				frame, err := c.LatestFrame()
				if err != nil {
					continue // camera not ready yet: blank stream
				}
				jpeg, ok := encodeScaled(frame)
				frame.Close()
				if !ok {
					continue
				}

				if _, err := w.Write([]byte("--" + boundary + "\r\nContent-Type: image/jpeg\r\nContent-Length: ")); err != nil {
					return
				}
				if err := writeFrame(w, jpeg); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func encodeScaled(frame gocv.Mat) ([]byte, bool) {
	w, h := frame.Cols(), frame.Rows()
	if w == 0 || h == 0 {
		return nil, false
	}

	scaled := frame
	owned := false
	if w > maxFeedWide {
		newH := int(float64(h) * float64(maxFeedWide) / float64(w))
		resized := gocv.NewMat()
		gocv.Resize(frame, &resized, image.Pt(maxFeedWide, newH), 0, 0, gocv.InterpolationArea)
		scaled = resized
		owned = true
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, scaled)
	if owned {
		scaled.Close()
	}
	if err != nil {
		return nil, false
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), true
}

func writeFrame(w http.ResponseWriter, jpeg []byte) error {
	if _, err := w.Write([]byte(strconv.Itoa(len(jpeg)) + "\r\n\r\n")); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
