package clustering

// New returns the Engine for the requested method. Density is the
// default per spec.md §4.1.
func New(method Method) Engine {
	if method == MethodCapacity {
		return NewCapacityEngine()
	}
	return NewDensityEngine()
}
