package types

import (
	"fmt"
	"strings"
)

// MaxFieldDepth is the deepest dot-separated path accepted for projection
const MaxFieldDepth = 4

var forbiddenSegments = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// ValidateFieldPath rejects projection paths that are too deep or name a
// forbidden segment (case-insensitive).
func ValidateFieldPath(path string) error {
	parts := strings.Split(path, ".")
	if len(parts) > MaxFieldDepth {
		return fmt.Errorf("%w: %s", ErrFieldPathTooDeep, path)
	}
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("%w: %s", ErrInvalidFieldPath, path)
		}
		if _, bad := forbiddenSegments[strings.ToLower(part)]; bad {
			return fmt.Errorf("%w: %s", ErrInvalidFieldPath, path)
		}
	}
	return nil
}

// ExtractFields projects e onto the given paths. Keys of the result are the
// paths themselves; paths that resolve to nothing are omitted. With no
// fields the entity is returned as-is.
func ExtractFields(e Entity, fields []string) (Entity, error) {
	if len(fields) == 0 {
		return e, nil
	}

	for _, field := range fields {
		if err := ValidateFieldPath(field); err != nil {
			return nil, err
		}
	}

	out := make(Entity, len(fields))
	for _, field := range fields {
		if val, ok := e.Lookup(field); ok {
			out[field] = val
		}
	}
	return out, nil
}
