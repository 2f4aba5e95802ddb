package readback

import (
	"image"

	"github.com/soocke/framepace/domain/latency"
)

// AverageGray returns the mean luma of img using integer BT.601 weights.
func AverageGray(img *image.RGBA) (uint8, bool) {
	if img == nil {
		return 0, false
	}
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 0, false
	}
	var sum uint64
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			r, g, bl := uint64(row[x]), uint64(row[x+1]), uint64(row[x+2])
			sum += (299*r + 587*g + 114*bl) / 1000
		}
	}
	return uint8(sum / uint64(w*h)), true
}

// Decode maps a captured patch to the readback index painted in it.
func Decode(img *image.RGBA) (latency.DrawColor, bool) {
	gray, ok := AverageGray(img)
	if !ok {
		return 0, false
	}
	return latency.ColorFromPixel(gray)
}

// FillPatch paints the gray level of color into every pixel of img.
func FillPatch(img *image.RGBA, color latency.DrawColor) {
	v := color.Pixel()
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 0xff
	}
}
