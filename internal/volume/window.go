package volume

import "math"

// WindowLevelName is the field array holding (center, width).
const WindowLevelName = "window_level"

// AnnotateWindow attaches the display window to buf as a two-component
// field array. Absent values are stored as NaN. Voxel data is not touched.
func AnnotateWindow(buf *Buffer, center, width *float64) {
	c, w := math.NaN(), math.NaN()
	if center != nil {
		c = *center
	}
	if width != nil {
		w = *width
	}
	buf.Fields.Set(FieldArray{
		Name:       WindowLevelName,
		Components: 2,
		Values:     []float32{float32(c), float32(w)},
	})
}
