package pagination

import (
	"fmt"
	"net/http"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// Creator builds a Pager for the first request or errors on bad opts.
type Creator func(*http.Request, map[string]interface{}) (Pager, error)

func pageCreator(r *http.Request, opts map[string]interface{}) (Pager, error) {
	pp, err := getStringOption(opts, "pageParam", "page pagination")
	if err != nil {
		return nil, err
	}
	sz, err := getStringOption(opts, "sizeParam", "page pagination")
	if err != nil {
		return nil, err
	}
	ps, err := getIntOption(opts, "pageSize", "page pagination")
	if err != nil {
		return nil, err
	}

	p := NewPagePager(r, pp, sz, getOptionalIntOption(opts, "startPage", 1), ps)
	p.HasMorePath = getOptionalStringOption(opts, "hasMorePath")
	p.TotalPagesPath = getOptionalStringOption(opts, "totalPagesPath")
	return p, nil
}

func linkCreator(r *http.Request, opts map[string]interface{}) (Pager, error) {
	return NewLinkPager(r, getOptionalStringOption(opts, "nextPath")), nil
}

// Helper functions for option extraction
func getStringOption(opts map[string]interface{}, key, ctx string) (string, error) {
	v, ok := opts[key]
	if !ok {
		return "", errors.WrapError(
			fmt.Errorf("%s missing", key),
			errors.ErrConfiguration,
			ctx,
		)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.WrapError(
			fmt.Errorf("%s must be string, got %T", key, v),
			errors.ErrConfiguration,
			ctx,
		)
	}
	return s, nil
}

func getIntOption(opts map[string]interface{}, key, ctx string) (int, error) {
	v, ok := opts[key]
	if !ok {
		return 0, errors.WrapError(
			fmt.Errorf("%s missing", key),
			errors.ErrConfiguration,
			ctx,
		)
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case float64:
		return int(x), nil
	default:
		return 0, errors.WrapError(
			fmt.Errorf("%s must be int, got %T", key, v),
			errors.ErrConfiguration,
			ctx,
		)
	}
}

func getOptionalStringOption(opts map[string]interface{}, key string) string {
	if v, ok := opts[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getOptionalIntOption(opts map[string]interface{}, key string, defaultVal int) int {
	if v, ok := opts[key]; ok {
		switch x := v.(type) {
		case int:
			return x
		case float64:
			return int(x)
		}
	}
	return defaultVal
}
