package utils

// Float64Ptr returns a pointer to f
func Float64Ptr(f float64) *float64 {
	return &f
}
