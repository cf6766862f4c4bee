package ident

import (
	"strings"
)

// SplitQualified splits a potentially schema-qualified identifier into its parts.
// Backtick-quoted parts may contain dots; a doubled backtick escapes a literal one.
func SplitQualified(ident string) []string {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil
	}
	var parts []string
	var buf strings.Builder
	inQuotes := false
	runes := []rune(ident)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '`':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '`' {
				buf.WriteRune('`')
				i++
				continue
			}
			inQuotes = !inQuotes
		case '.':
			if inQuotes {
				buf.WriteRune(r)
				continue
			}
			part := strings.TrimSpace(buf.String())
			parts = append(parts, part)
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	part := strings.TrimSpace(buf.String())
	parts = append(parts, part)
	return parts
}

// QuoteQualified renders qualified identifier parts as a SQL identifier.
func QuoteQualified(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = Quote(p)
	}
	return strings.Join(quoted, ".")
}

// Quote wraps a single identifier part in backticks.
func Quote(part string) string {
	return "`" + strings.ReplaceAll(part, "`", "``") + "`"
}

// Table renders a table reference. Names that already carry backticks are
// trusted as written, so callers can pass `schema`.`table` verbatim; a bare
// schema.table is quoted part by part.
func Table(name string) string {
	if strings.Contains(name, "`") {
		return name
	}
	if parts := SplitQualified(name); len(parts) > 1 {
		return QuoteQualified(parts)
	}
	return Quote(name)
}

// BaseTableName returns the last segment of a qualified identifier.
func BaseTableName(ident string) string {
	parts := SplitQualified(ident)
	if len(parts) == 0 {
		return strings.TrimSpace(ident)
	}
	return parts[len(parts)-1]
}
