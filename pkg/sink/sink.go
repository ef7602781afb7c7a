// Package sink delivers the records of a stream to their destination.
package sink

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/client"
)

// Sink receives the records of one stream at a time.
type Sink interface {
	Write(ctx context.Context, desc catalog.Descriptor, records []client.Record) error
	Close() error
}

// cell renders a value for tabular output. Objects and arrays are written
// as JSON.
func cell(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
