package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtractField extracts a value from a decoded JSON document by path.
// Supports:
// - Nested fields: "attributes.orderId"
// - Array indices: "items[0]", "items[-1]" (negative counts from the end)
// - Array wildcards: "relationships.orderItems.data[*].id"
//
// A wildcard collects the remaining path from every element that has it.
func ExtractField(data interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	segments, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	return traversePath(data, segments)
}

// PathSegment represents a single segment in a path
type PathSegment struct {
	Field string
	Type  SegmentType
	Index int
}

// SegmentType tags one step of a parsed path.
type SegmentType int

const (
	FieldSegment  SegmentType = iota // map key
	ArrayIndex                       // [0], [-1]
	ArrayWildcard                    // [*]
)

// parsePath converts a dotted path into segments.
func parsePath(path string) ([]PathSegment, error) {
	var segments []PathSegment

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}

		field, rest, hasBracket := strings.Cut(part, "[")
		if field != "" {
			segments = append(segments, PathSegment{Field: field, Type: FieldSegment})
		}
		if !hasBracket {
			continue
		}

		rest = "[" + rest
		for rest != "" {
			if !strings.HasPrefix(rest, "[") {
				return nil, fmt.Errorf("invalid syntax after bracket in %q", part)
			}
			end := strings.Index(rest, "]")
			if end == -1 {
				return nil, fmt.Errorf("unclosed bracket in %q", part)
			}

			inner := rest[1:end]
			if inner == "*" {
				segments = append(segments, PathSegment{Type: ArrayWildcard})
			} else {
				idx, err := strconv.Atoi(inner)
				if err != nil {
					return nil, fmt.Errorf("invalid array index %q", inner)
				}
				segments = append(segments, PathSegment{Type: ArrayIndex, Index: idx})
			}
			rest = rest[end+1:]
		}
	}

	return segments, nil
}

// traversePath walks data following the path segments.
func traversePath(data interface{}, segments []PathSegment) (interface{}, bool) {
	current := data

	for i, seg := range segments {
		switch seg.Type {
		case FieldSegment:
			m, ok := current.(map[string]interface{})
			if !ok {
				return nil, false
			}
			if current, ok = m[seg.Field]; !ok {
				return nil, false
			}

		case ArrayIndex:
			arr, ok := current.([]interface{})
			if !ok {
				return nil, false
			}
			idx := seg.Index
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				return nil, false
			}
			current = arr[idx]

		case ArrayWildcard:
			arr, ok := current.([]interface{})
			if !ok {
				return nil, false
			}
			if i == len(segments)-1 {
				return arr, true
			}

			results := make([]interface{}, 0, len(arr))
			for _, elem := range arr {
				v, ok := traversePath(elem, segments[i+1:])
				if !ok {
					continue
				}
				if nested, isArr := v.([]interface{}); isArr && hasWildcard(segments[i+1:]) {
					results = append(results, nested...)
				} else {
					results = append(results, v)
				}
			}
			return results, len(results) > 0
		}
	}

	return current, true
}

func hasWildcard(segments []PathSegment) bool {
	for _, s := range segments {
		if s.Type == ArrayWildcard {
			return true
		}
	}
	return false
}
