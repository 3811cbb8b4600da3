package rules

import "strings"

// CleanColumnName normalizes a raw column name into snake_case: characters
// outside [A-Za-z0-9_ ] become underscores, camelCase and spaces become
// underscore boundaries, everything is lowercased, duplicate and edge
// underscores collapse away, a leading digit gets a col_ prefix, and an
// empty result falls back to unnamed_column. The transform is idempotent.
func CleanColumnName(name string) string {
	s := strings.TrimSpace(name)

	var b strings.Builder
	b.Grow(len(s) + 4)
	prev := rune(0)
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			// camelCase boundary: lower-or-digit followed by upper
			if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		prev = r
	}

	cleaned := collapseUnderscores(b.String())
	if cleaned == "" {
		return "unnamed_column"
	}
	if cleaned[0] >= '0' && cleaned[0] <= '9' {
		cleaned = "col_" + cleaned
	}
	return cleaned
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if r == '_' {
			if !lastUnderscore {
				b.WriteByte('_')
			}
			lastUnderscore = true
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}
	return strings.Trim(b.String(), "_")
}
