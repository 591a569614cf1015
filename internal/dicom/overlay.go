package dicom

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawLabel burns text into a row-major slice of samples. The text is
// centred, scaled to about 30% of the image width and drawn with value fg
// over an outline of value outline.
func drawLabel(samples []int, width, height int, text string, fg, outline int) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Height
	if textWidth == 0 || width == 0 || height == 0 {
		return
	}

	glyphs := image.NewAlpha(image.Rect(0, 0, textWidth, textHeight))
	drawer := &font.Drawer{
		Dst:  glyphs,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(text)

	scale := max(1, float64(width)*0.3/float64(textWidth))
	scaledWidth := int(float64(textWidth) * scale)
	scaledHeight := int(float64(textHeight) * scale)
	scaled := image.NewAlpha(image.Rect(0, 0, scaledWidth, scaledHeight))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), glyphs, glyphs.Bounds(), draw.Over, nil)

	x0 := (width - scaledWidth) / 2
	y0 := (height - scaledHeight) / 2
	set := func(x, y, v int) {
		if x >= 0 && x < width && y >= 0 && y < height {
			samples[y*width+x] = v
		}
	}
	inked := func(sx, sy int) bool {
		return scaled.AlphaAt(sx, sy).A >= 0x80
	}

	thickness := max(1, scaledHeight/10)
	for sy := 0; sy < scaledHeight; sy++ {
		for sx := 0; sx < scaledWidth; sx++ {
			if !inked(sx, sy) {
				continue
			}
			for dy := -thickness; dy <= thickness; dy++ {
				for dx := -thickness; dx <= thickness; dx++ {
					if dx*dx+dy*dy <= thickness*thickness {
						set(x0+sx+dx, y0+sy+dy, outline)
					}
				}
			}
		}
	}
	for sy := 0; sy < scaledHeight; sy++ {
		for sx := 0; sx < scaledWidth; sx++ {
			if inked(sx, sy) {
				set(x0+sx, y0+sy, fg)
			}
		}
	}
}
