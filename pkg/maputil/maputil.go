// Package maputil provides helpers for working with nested string-keyed maps,
// the shape most decoded JSON documents take.
package maputil

import (
	"fmt"
	"strings"
)

// SafeGet retrieves the value at a dotted path (e.g. "a.b.c") from a nested map.
// The second return value reports whether the full path was present.
func SafeGet(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	keys := strings.Split(path, ".")
	current := data
	for i, key := range keys {
		value, ok := current[key]
		if !ok {
			return nil, false
		}
		if i == len(keys)-1 {
			return value, true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// Set places a value at a dotted path, creating intermediate maps as needed.
// It returns an error if an intermediate path element exists but is not a map.
func Set(data map[string]any, path string, value any) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	keys := strings.Split(path, ".")
	current := data
	for _, key := range keys[:len(keys)-1] {
		existing, ok := current[key]
		if !ok {
			next := make(map[string]any)
			current[key] = next
			current = next
			continue
		}
		next, ok := existing.(map[string]any)
		if !ok {
			return fmt.Errorf("path element %q is not a map", key)
		}
		current = next
	}
	current[keys[len(keys)-1]] = value
	return nil
}

// Flatten collapses a nested map into a single-level map with dotted keys.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]any, prefix string, data map[string]any) {
	for key, value := range data {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(out, full, nested)
			continue
		}
		out[full] = value
	}
}

// FindKey searches a nested structure (maps and slices) for the first
// occurrence of key and returns its value.
func FindKey(data any, key string) (any, bool) {
	switch v := data.(type) {
	case map[string]any:
		if value, ok := v[key]; ok {
			return value, true
		}
		for _, value := range v {
			if found, ok := FindKey(value, key); ok {
				return found, true
			}
		}
	case []any:
		for _, item := range v {
			if found, ok := FindKey(item, key); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// ReplaceKey returns a copy of data with every occurrence of key, at any
// nesting depth through maps and slices, replaced by value.
func ReplaceKey(data any, key string, value any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if k == key {
				out[k] = value
				continue
			}
			out[k] = ReplaceKey(item, key, value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = ReplaceKey(item, key, value)
		}
		return out
	default:
		return data
	}
}

// MissingKeys reports the keys present in reference but absent from data,
// recursing into nested maps that exist on both sides.
func MissingKeys(reference, data map[string]any) []string {
	var missing []string
	for key, refValue := range reference {
		dataValue, ok := data[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		refNested, refIsMap := refValue.(map[string]any)
		dataNested, dataIsMap := dataValue.(map[string]any)
		if refIsMap && dataIsMap {
			missing = append(missing, MissingKeys(refNested, dataNested)...)
		}
	}
	return missing
}

// PatchMissing fills data in place with any keys from reference that it lacks,
// recursing into nested maps. Existing values are never overwritten. It returns
// true if anything was added.
func PatchMissing(data, reference map[string]any) bool {
	patched := false
	for key, refValue := range reference {
		dataValue, ok := data[key]
		if !ok {
			data[key] = refValue
			patched = true
			continue
		}
		refNested, refIsMap := refValue.(map[string]any)
		dataNested, dataIsMap := dataValue.(map[string]any)
		if refIsMap && dataIsMap {
			if PatchMissing(dataNested, refNested) {
				patched = true
			}
		}
	}
	return patched
}
