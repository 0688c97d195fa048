package admin

import "strconv"

// parseLimit parses the ?limit= query parameter, defaulting to def and
// never exceeding max.
func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
