package volume

// FieldArray is a small named array attached to a volume rather than to its voxels.
type FieldArray struct {
	Name       string
	Components int
	Values     []float32
}

// FieldData is an ordered set of field arrays, unique by name.
type FieldData []FieldArray

// Get returns the array with the given name.
func (f FieldData) Get(name string) (FieldArray, bool) {
	for _, a := range f {
		if a.Name == name {
			return a, true
		}
	}
	return FieldArray{}, false
}

// Set adds the array, replacing any existing array with the same name in place.
func (f *FieldData) Set(a FieldArray) {
	for i := range *f {
		if (*f)[i].Name == a.Name {
			(*f)[i] = a
			return
		}
	}
	*f = append(*f, a)
}

// Clone returns a deep copy.
func (f FieldData) Clone() FieldData {
	if f == nil {
		return nil
	}
	out := make(FieldData, len(f))
	for i, a := range f {
		out[i] = FieldArray{
			Name:       a.Name,
			Components: a.Components,
			Values:     append([]float32(nil), a.Values...),
		}
	}
	return out
}
