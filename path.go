package entikit

import "strconv"

// JoinPath joins a child path onto a base using dotted notation. Either side
// may be empty.
func JoinPath(base, child string) string {
	if base == "" {
		return child
	}
	if child == "" {
		return base
	}
	return base + "." + child
}

// IndexPath appends an array index onto a base path.
func IndexPath(base string, i int) string {
	return JoinPath(base, strconv.Itoa(i))
}
