package pagination

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// parseBody reads and parses JSON into a generic map. A bare array is
// wrapped under "data".
func parseBody(resp *http.Response) (map[string]interface{}, error) {
	defer resp.Body.Close()

	var raw interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPResponse, "parse response body")
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		return v, nil
	case []interface{}:
		return map[string]interface{}{"data": v}, nil
	}
	return nil, errors.WrapError(
		fmt.Errorf("unexpected response type: %T", raw),
		errors.ErrHTTPResponse,
		"parse response body",
	)
}

// lookup drills into a nested map by a dotted path.
func lookup(body map[string]interface{}, path string) (interface{}, error) {
	var cur interface{} = body
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, errors.WrapError(
				fmt.Errorf("%q is not an object", key),
				errors.ErrExtraction,
				"traverse object",
			)
		}
		cur, ok = m[key]
		if !ok {
			return nil, errors.WrapError(
				fmt.Errorf("missing field %q", key),
				errors.ErrExtraction,
				"find field",
			)
		}
	}
	return cur, nil
}

// lookupString returns "" for null, which ends link pagination.
func lookupString(body map[string]interface{}, path string) (string, error) {
	cur, err := lookup(body, path)
	if err != nil || cur == nil {
		return "", err
	}
	s, ok := cur.(string)
	if !ok {
		return "", errors.WrapError(
			fmt.Errorf("field %q is not a string", path),
			errors.ErrExtraction,
			"convert to string",
		)
	}
	return s, nil
}

func lookupBool(body map[string]interface{}, path string) (bool, error) {
	cur, err := lookup(body, path)
	if err != nil {
		return false, err
	}
	b, ok := cur.(bool)
	if !ok {
		return false, errors.WrapError(
			fmt.Errorf("field %q is not a bool", path),
			errors.ErrExtraction,
			"convert to boolean",
		)
	}
	return b, nil
}

func lookupInt(body map[string]interface{}, path string) (int, error) {
	cur, err := lookup(body, path)
	if err != nil {
		return 0, err
	}
	switch v := cur.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	}
	return 0, errors.WrapError(
		fmt.Errorf("field %q is not a number, got %T", path, cur),
		errors.ErrExtraction,
		"convert to integer",
	)
}
