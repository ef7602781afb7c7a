package transform

// FlatRecord maps dotted key paths to leaf values.
type FlatRecord = map[string]interface{}

// Separator joins the keys of nested objects.
const Separator = "."

// Flatten converts a nested record into a single level map. Nested objects
// contribute their keys joined with Separator; arrays and scalars are copied
// as-is. An empty object nested inside the record contributes no keys.
// A nil record flattens to an empty map.
func Flatten(record map[string]interface{}) FlatRecord {
	out := make(FlatRecord, len(record))
	flattenInto(out, "", record)
	return out
}

// FlattenValue flattens v when it is an object and returns it unchanged
// otherwise.
func FlattenValue(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return Flatten(m)
	}
	return v
}

func flattenInto(out FlatRecord, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + Separator + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}
