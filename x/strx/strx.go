// Package strx holds string helpers shared by both targets.
package strx

// Coalesce returns the first non-empty value, or "" if all are empty.
func Coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
