package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// envelope is the response shape of every endpoint.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func decodeData(body []byte) (interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPResponse, "failed to decode response JSON")
	}
	if len(env.Data) == 0 {
		return nil, nil
	}
	var data interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPResponse, "failed to decode data")
	}
	return data, nil
}

func unwrapList(body []byte) ([]Record, error) {
	data, err := decodeData(body)
	if err != nil {
		return nil, err
	}

	switch v := data.(type) {
	case nil:
		return []Record{}, nil
	case map[string]interface{}:
		return []Record{v}, nil
	case []interface{}:
		records := make([]Record, 0, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.WrapError(
					fmt.Errorf("element %d is %T, not an object", i, item),
					errors.ErrExtraction,
					"unwrap data",
				)
			}
			records = append(records, rec)
		}
		return records, nil
	}
	return nil, errors.WrapError(fmt.Errorf("data is %T", data), errors.ErrExtraction, "unwrap data")
}

func unwrapOne(body []byte) (Record, error) {
	data, err := decodeData(body)
	if err != nil {
		return nil, err
	}

	switch v := data.(type) {
	case nil:
		return Record{}, nil
	case map[string]interface{}:
		return v, nil
	}
	return nil, errors.WrapError(
		fmt.Errorf("expected a single object, data is %T", data),
		errors.ErrExtraction,
		"unwrap data",
	)
}
