package contextdao

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Top-level fields of the flattened connection context.
const (
	FieldConnectionInitReceived = "connectionInitReceived"
	FieldAcknowledged           = "acknowledged"
	FieldConnectionParams       = "connectionParams"
	FieldExtra                  = "extra"
	FieldSubscriptions          = "subscriptions"
)

// Flatten converts a context into its flat, type-tagged hash form. Nested
// containers become dot-joined paths with base-10 segments for array
// indices. Subscriptions are in-memory state and are never persisted.
func Flatten(c *Context) (map[string]string, error) {
	out := map[string]string{}
	add := func(field, value string) { out[field] = value }

	initValue, _ := EncodeValue(c.ConnectionInitReceived)
	add(FieldConnectionInitReceived, initValue)
	ackValue, _ := EncodeValue(c.Acknowledged)
	add(FieldAcknowledged, ackValue)

	if c.ConnectionParams != nil {
		if err := walkLeaves(FieldConnectionParams, c.ConnectionParams, add); err != nil {
			return nil, err
		}
	}
	if err := walkLeaves(FieldExtra, c.Extra, add); err != nil {
		return nil, err
	}
	return out, nil
}

// Decompress rebuilds a context from its flat hash form. Entries with an
// unrecognized first segment are dropped; empty path segments from double
// dots are dropped as well.
func Decompress(flat map[string]string) *Context {
	c := NewContext()
	for key, raw := range flat {
		segments := splitPath(key)
		if len(segments) == 0 {
			continue
		}
		value := DecodeValue(raw)

		switch segments[0] {
		case FieldConnectionInitReceived:
			if b, ok := value.(bool); ok {
				c.ConnectionInitReceived = b
			}
		case FieldAcknowledged:
			if b, ok := value.(bool); ok {
				c.Acknowledged = b
			}
		case FieldConnectionParams:
			if len(segments) == 1 {
				c.ConnectionParams = value
			} else {
				c.ConnectionParams = setPath(c.ConnectionParams, segments[1:], value)
			}
		case FieldExtra:
			if len(segments) > 1 {
				if m, ok := setPath(c.Extra, segments[1:], value).(map[string]interface{}); ok {
					c.Extra = m
				}
			}
		case FieldSubscriptions:
			if len(segments) > 1 {
				if m, ok := setPath(c.Subscriptions, segments[1:], value).(map[string]interface{}); ok {
					c.Subscriptions = m
				}
			}
		}
	}
	return c
}

// walkLeaves visits every leaf of a value tree in deterministic order,
// emitting the encoded (path, value) entries of its flattened form.
func walkLeaves(path string, v interface{}, emit func(field, value string)) error {
	switch x := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := walkLeaves(path+"."+k, x[k], emit); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		for i, item := range x {
			if err := walkLeaves(path+"."+strconv.Itoa(i), item, emit); err != nil {
				return err
			}
		}
		return nil
	default:
		encoded, err := EncodeValue(v)
		if err != nil {
			return fmt.Errorf("flattening %v: %w", path, err)
		}
		emit(path, encoded)
		return nil
	}
}

func splitPath(path string) []string {
	parts := strings.Split(path, ".")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// setPath navigates or creates nested containers along the segments and
// places value at the end. Numeric segments denote array indices; arrays
// expand sparsely with Undefined placeholders.
func setPath(root interface{}, segments []string, value interface{}) interface{} {
	if len(segments) == 0 {
		return value
	}
	seg := segments[0]
	if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 {
		arr, _ := root.([]interface{})
		for len(arr) <= idx {
			arr = append(arr, Undefined)
		}
		next := arr[idx]
		if _, hole := next.(undefined); hole && len(segments) > 1 {
			next = nil
		}
		arr[idx] = setPath(next, segments[1:], value)
		return arr
	}

	m, ok := root.(map[string]interface{})
	if !ok {
		m = map[string]interface{}{}
	}
	m[seg] = setPath(m[seg], segments[1:], value)
	return m
}

// getPath returns the value at the segments, reporting whether it exists.
func getPath(root interface{}, segments []string) (interface{}, bool) {
	if len(segments) == 0 {
		return root, true
	}
	seg := segments[0]
	switch x := root.(type) {
	case map[string]interface{}:
		next, ok := x[seg]
		if !ok {
			return nil, false
		}
		return getPath(next, segments[1:])
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(x) {
			return nil, false
		}
		return getPath(x[idx], segments[1:])
	default:
		return nil, false
	}
}

// delPath removes the value at the segments. Array elements are replaced by
// an Undefined hole so sibling indices keep their positions.
func delPath(root interface{}, segments []string) (interface{}, bool) {
	if len(segments) == 0 {
		return root, false
	}
	seg := segments[0]
	switch x := root.(type) {
	case map[string]interface{}:
		next, ok := x[seg]
		if !ok {
			return x, false
		}
		if len(segments) == 1 {
			delete(x, seg)
			return x, true
		}
		updated, deleted := delPath(next, segments[1:])
		x[seg] = updated
		return x, deleted
	case []interface{}:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(x) {
			return x, false
		}
		if len(segments) == 1 {
			x[idx] = Undefined
			return x, true
		}
		updated, deleted := delPath(x[idx], segments[1:])
		x[idx] = updated
		return x, deleted
	default:
		return root, false
	}
}
