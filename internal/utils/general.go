package utils

// SliceToSet builds membership sets for the include/exclude rules.
func SliceToSet[T comparable](s []T) map[T]bool {
	ret := make(map[T]bool, len(s))
	for i := 0; i < len(s); i++ {
		ret[s[i]] = true
	}

	return ret
}
