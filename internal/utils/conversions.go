package utils

import "strconv"

// ParseIntDefault parses s as a base-10 integer, returning def when s is
// empty or malformed.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ToStringSlice coerces a decoded JSON value into a string slice.
// JWT claims such as "aud" may arrive as a single string or as an array.
func ToStringSlice(v any) []string {
	stringSlice := make([]string, 0)
	switch value := v.(type) {
	case string:
		stringSlice = append(stringSlice, value)
	case []any:
		for _, item := range value {
			if s, ok := item.(string); ok {
				stringSlice = append(stringSlice, s)
			}
		}
	case []string:
		stringSlice = append(stringSlice, value...)
	}
	return stringSlice
}
