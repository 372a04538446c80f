package query

// BoolPtr is a helper that returns a pointer to a bool, handy for the
// Options.Single override.
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr is a helper that returns a pointer to an int.
func IntPtr(i int) *int {
	return &i
}
