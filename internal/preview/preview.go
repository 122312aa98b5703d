// Package preview scales decoded frames down for on-screen display.
// Exports always use the full-resolution frame.
package preview

import (
	"image"

	"golang.org/x/image/draw"
)

// Fit returns img scaled to fit within maxW x maxH, keeping its aspect ratio.
// Images that already fit, and zero limits, return img unchanged.
func Fit(img image.Image, maxW, maxH int) image.Image {
	if img == nil || maxW <= 0 || maxH <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	dw, dh := FitSize(w, h, maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FitSize returns the largest w x h with the source aspect ratio that fits in
// maxW x maxH, never smaller than 1x1.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	// compare w/h with maxW/maxH without floats
	if w*maxH > h*maxW {
		return maxW, max(1, h*maxW/w)
	}
	return max(1, w*maxH/h), maxH
}
