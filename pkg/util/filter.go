package util

// InPlaceFilter keeps only the elements of s matching p, reusing the backing array
func InPlaceFilter[T any](s *[]T, p func(T) bool) {
	i := 0
	for _, e := range *s {
		if p(e) {
			(*s)[i] = e
			i++
		}
	}
	*s = (*s)[:i]
}

// CountMatching returns how many elements of s match p
func CountMatching[T any](s []T, p func(T) bool) int {
	count := 0
	for _, e := range s {
		if p(e) {
			count++
		}
	}

	return count
}
