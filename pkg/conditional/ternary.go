// package conditional
//
// tiny expression helpers go does not ship with
package conditional

// Ternary : returns a when cond holds, b otherwise
func Ternary[T any](cond bool, a T, b T) T {
	if cond {
		return a
	}
	return b
}

// Default : returns v unless it is the zero value, in which case def is returned
func Default[T comparable](v T, def T) T {
	var zero T
	return Ternary(v == zero, def, v)
}
