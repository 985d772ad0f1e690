package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is the capability set the searcher and fuzzy matcher need from a
// record: resolving a (possibly nested, dot-separated) field path.
type Document interface {
	Lookup(path string) (any, bool)
}

// Entity is a structured game record decoded from JSON.
// Entities are treated as read-only once loaded.
type Entity map[string]any

// Lookup resolves a dot-separated path. Traversing an array applies the
// remaining path to every element, so "items.name" on a trader yields the
// names of all its items.
func (e Entity) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	return lookup(map[string]any(e), strings.Split(path, "."))
}

func lookup(current any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return current, current != nil
	}

	switch v := current.(type) {
	case map[string]any:
		next, ok := v[parts[0]]
		if !ok {
			return nil, false
		}
		return lookup(next, parts[1:])
	case Entity:
		return lookup(map[string]any(v), parts)
	case []any:
		var out []any
		for _, elem := range v {
			if val, ok := lookup(elem, parts); ok {
				out = append(out, val)
			}
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

// Strings returns the text found at path, flattening arrays and
// stringifying scalars. Missing or null values yield nil.
func (e Entity) Strings(path string) []string {
	return FieldStrings(e, path)
}

// ID returns the entity's identifier from field, stringified.
func (e Entity) ID(field string) (string, bool) {
	return DocumentID(e, field)
}

// FieldStrings is Strings for any Document.
func FieldStrings(doc Document, path string) []string {
	val, ok := doc.Lookup(path)
	if !ok {
		return nil
	}
	return appendStrings(nil, val)
}

func appendStrings(dst []string, val any) []string {
	switch v := val.(type) {
	case nil:
		return dst
	case []any:
		for _, elem := range v {
			dst = appendStrings(dst, elem)
		}
		return dst
	case []string:
		return append(dst, v...)
	case map[string]any, Entity:
		return dst
	default:
		if s, ok := scalarString(v); ok && s != "" {
			dst = append(dst, s)
		}
		return dst
	}
}

// DocumentID returns the identifier of doc stored under field.
// Empty and non-scalar values are not identifiers.
func DocumentID(doc Document, field string) (string, bool) {
	val, ok := doc.Lookup(field)
	if !ok {
		return "", false
	}
	s, ok := scalarString(val)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func scalarString(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
