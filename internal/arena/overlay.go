package arena

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/connectedhumber/arena-locator/internal/params"
	"github.com/connectedhumber/arena-locator/internal/robot"
)

// annotate draws robot outlines, id numbers, and the optional
// crosshair/mask/calibration overlays onto scene in place, matching
// §4.4 step 5's display flags.
func (p *Processor) annotate(scene *gocv.Mat) {
	for _, b := range p.botsFound {
		c := toRGBA(b.Color())

		contour := b.Contour()
		if len(contour) > 0 {
			pvs := gocv.NewPointsVectorFromPoints([][]image.Point{contour})
			gocv.Polylines(scene, pvs, true, c, 2)
			pvs.Close()
		}

		loc := b.Location()
		if id, ok := b.ID(); ok {
			gocv.PutText(scene, fmt.Sprintf("%d", id), image.Pt(loc.X-6, loc.Y+6),
				gocv.FontHersheySimplex, 0.8, c, 2)
		}

		if p.showCrosshairs {
			gocv.Line(scene, image.Pt(loc.X-10, loc.Y), image.Pt(loc.X+10, loc.Y), c, 1)
			gocv.Line(scene, image.Pt(loc.X, loc.Y-10), image.Pt(loc.X, loc.Y+10), c, 1)
		}
	}

	if p.showMask {
		w, h := p.params.GetSize(params.ArenaMaskSize)
		fw := p.params.GetInt(params.FrameWidth)
		fh := p.params.GetInt(params.FrameHeight)
		roiW := minInt(w, fw)
		roiH := minInt(h, fh)
		x1 := (fw - roiW) / 2
		y1 := (fh - roiH) / 2
		gocv.Rectangle(scene, image.Rect(x1, y1, x1+roiW, y1+roiH), color.RGBA{R: 0, G: 255, B: 255, A: 255}, 1)
	}

	if p.showScale {
		// The calibration (A4) rectangle is centred on the frame and
		// sized from SCALE_RECT_SIZE via CAMERA_SCALE (mm -> px).
		mmW, mmH := p.params.GetSize(params.ScaleRectSize)
		scale := p.params.GetFloat(params.CameraScale)
		fw := p.params.GetInt(params.FrameWidth)
		fh := p.params.GetInt(params.FrameHeight)
		pxW := int(float64(mmW) / scale)
		pxH := int(float64(mmH) / scale)
		x1 := (fw - pxW) / 2
		y1 := (fh - pxH) / 2
		gocv.Rectangle(scene, image.Rect(x1, y1, x1+pxW, y1+pxH), color.RGBA{R: 255, G: 0, B: 255, A: 255}, 1)
	}
}

func toRGBA(c robot.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
