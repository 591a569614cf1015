package volume

// SeriesGeometry is the optional per-series metadata surfaced by a volume source.
// A nil pointer or slice means the value was absent in the series.
type SeriesGeometry struct {
	SliceSpacing   *float64
	InPlaneSpacing []float64 // row spacing, column spacing as stored
	Orientation    []float64 // row direction cosines then column direction cosines
	Position       []float64
	BitsStored     *int
	WindowCenter   *float64
	WindowWidth    *float64
}

// HasOrientation reports whether both orientation rows are present.
func (g SeriesGeometry) HasOrientation() bool {
	return len(g.Orientation) == 6
}

// HasPosition reports whether a 3-D position is present.
func (g SeriesGeometry) HasPosition() bool {
	return len(g.Position) == 3
}

// Is12Bit reports whether the series stores 12 significant bits per sample.
func (g SeriesGeometry) Is12Bit() bool {
	return g.BitsStored != nil && *g.BitsStored == 12
}

// SpacingOverride returns the spacing implied by in-plane and slice spacing
// when both are present and positive. A negative or NaN value leaves the
// reader's spacing in place, since Buffer.Validate rejects non-positive spacing.
func (g SeriesGeometry) SpacingOverride() ([3]float64, bool) {
	if g.SliceSpacing == nil || !(*g.SliceSpacing > 0) || len(g.InPlaneSpacing) < 2 {
		return [3]float64{}, false
	}
	if !(g.InPlaneSpacing[0] > 0) || !(g.InPlaneSpacing[1] > 0) {
		return [3]float64{}, false
	}
	return [3]float64{g.InPlaneSpacing[0], g.InPlaneSpacing[1], *g.SliceSpacing}, true
}

// Float returns a pointer to v, for building SeriesGeometry literals.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
