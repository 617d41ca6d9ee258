package types

import (
	"strconv"
	"strings"
	"unicode"
)

const (
	// DefaultDeltaLimit is used when a delta request omits the limit.
	DefaultDeltaLimit = 100
	// MaxDeltaLimit bounds a single delta page.
	MaxDeltaLimit = 10000
	maxPublicIDLen = 191
)

// ParseCursor parses a pointer value. Cursors are non-negative integers.
func ParseCursor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, NewInputError(TextCodeInvalidCursor, "pointer is required")
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, NewInputError(TextCodeInvalidCursor, "pointer must be a non-negative integer")
	}
	return value, nil
}

// ParseLimit parses a limit, applying def when raw is empty and rejecting
// values outside [0, max].
func ParseLimit(raw string, def, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewInputError(TextCodeInvalidLimit, "limit must be an integer")
	}
	if value < 0 || (max > 0 && value > max) {
		return 0, NewInputError(TextCodeInvalidLimit, "invalid value for limit: "+raw)
	}
	return value, nil
}

// ParseObjectType validates a single object type name.
func ParseObjectType(raw string) (ObjectType, error) {
	t := ObjectType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", NewInputError(TextCodeInvalidObjectType, "invalid object type: "+raw)
	}
	return t, nil
}

// ParseObjectTypes validates a comma separated list of object types.
func ParseObjectTypes(csv string) ([]ObjectType, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]ObjectType, 0, len(parts))
	seen := make(map[ObjectType]struct{}, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseObjectType(part)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// ValidPublicID rejects empty, oversized or non alphanumeric identifiers.
func ValidPublicID(raw string) error {
	if raw == "" || len(raw) > maxPublicIDLen {
		return NewInputError(TextCodeInvalidPublicID, "invalid public id")
	}
	for _, r := range raw {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return NewInputError(TextCodeInvalidPublicID, "invalid public id: "+raw)
		}
	}
	return nil
}
