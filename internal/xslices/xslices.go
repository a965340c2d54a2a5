package xslices

// Filter returns the elements of s for which keep returns true, in
// order, in a newly allocated slice.
func Filter[T any, S ~[]T](s S, keep func(T) bool) (r S) {
	r = make(S, 0, len(s))
	for _, v := range s {
		if keep(v) {
			r = append(r, v)
		}
	}
	return r
}

// Remove returns s without the first element equal to v. The second
// return value reports whether anything was removed.
func Remove[T comparable, S ~[]T](s S, v T) (S, bool) {
	for i, e := range s {
		if e == v {
			return append(s[:i:i], s[i+1:]...), true
		}
	}
	return s, false
}
