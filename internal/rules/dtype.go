package rules

import "strings"

// Frontend type names produced by MapDtype.
const (
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeBoolean  = "boolean"
	TypeDate     = "date"
	TypeDatetime = "datetime"
	TypeString   = "string"
)

// MapDtype maps a backend dtype string to its frontend type name. The same
// mapping backs both the detected-type badges and the instruction builder;
// they must never diverge. Already-mapped frontend names map to themselves.
func MapDtype(dtype string) string {
	lower := strings.ToLower(strings.TrimSpace(dtype))
	switch {
	case strings.HasPrefix(lower, "int"), lower == "integer":
		return TypeInt
	case strings.HasPrefix(lower, "float"), lower == "numeric", lower == "double":
		return TypeFloat
	case strings.HasPrefix(lower, "bool"):
		return TypeBoolean
	case strings.HasPrefix(lower, "datetime"):
		return TypeDatetime
	case strings.HasPrefix(lower, "date"):
		return TypeDate
	default:
		return TypeString
	}
}

// IsNumericType reports whether a frontend type name aggregates numerically.
func IsNumericType(frontendType string) bool {
	return frontendType == TypeInt || frontendType == TypeFloat
}

// IsTemporalType reports whether a frontend type name carries a format
// string in transformation instructions.
func IsTemporalType(frontendType string) bool {
	return frontendType == TypeDate || frontendType == TypeDatetime
}
