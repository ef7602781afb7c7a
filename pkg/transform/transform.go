package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Transformer defines the interface for field transformations
type Transformer interface {
	Transform(value interface{}) (interface{}, error)
}

// Registry holds all available transformers
type Registry struct {
	transformers map[string]TransformCreator
}

// TransformCreator creates a transformer from config
type TransformCreator func(config map[string]interface{}) (Transformer, error)

// NewRegistry creates a new transformer registry with defaults
func NewRegistry() *Registry {
	r := &Registry{
		transformers: make(map[string]TransformCreator),
	}

	r.Register("string", stringTransformCreator)
	r.Register("int", intTransformCreator)
	r.Register("float", floatTransformCreator)
	r.Register("bool", boolTransformCreator)
	r.Register("date", dateTransformCreator)

	return r
}

// Register adds a new transformer type
func (r *Registry) Register(name string, creator TransformCreator) {
	r.transformers[name] = creator
}

// Create builds a transformer from config
func (r *Registry) Create(transformType string, config map[string]interface{}) (Transformer, error) {
	creator, ok := r.transformers[transformType]
	if !ok {
		return nil, fmt.Errorf("unknown transform type: %s", transformType)
	}
	return creator(config)
}

// StringTransform converts values to strings
type StringTransform struct{}

func stringTransformCreator(map[string]interface{}) (Transformer, error) {
	return &StringTransform{}, nil
}

func (t *StringTransform) Transform(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case map[string]interface{}, []interface{}:
		return nil, fmt.Errorf("cannot convert %T to string", value)
	}
	return fmt.Sprintf("%v", value), nil
}

// IntTransform converts values to integers. Numbers with a fraction are
// rejected rather than truncated.
type IntTransform struct{}

func intTransformCreator(map[string]interface{}) (Transformer, error) {
	return &IntTransform{}, nil
}

func (t *IntTransform) Transform(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", value)
	}
}

// FloatTransform converts values to floats
type FloatTransform struct{}

func floatTransformCreator(map[string]interface{}) (Transformer, error) {
	return &FloatTransform{}, nil
}

func (t *FloatTransform) Transform(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return 0.0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0.0, fmt.Errorf("cannot convert %T to float", value)
	}
}

// BoolTransform converts values to booleans
type BoolTransform struct{}

func boolTransformCreator(map[string]interface{}) (Transformer, error) {
	return &BoolTransform{}, nil
}

func (t *BoolTransform) Transform(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

// DateTransform parses timestamps in one of InputFormats and renders them
// in OutputFormat. Strings already in OutputFormat are returned unchanged.
type DateTransform struct {
	InputFormats []string
	OutputFormat string
}

func dateTransformCreator(config map[string]interface{}) (Transformer, error) {
	t := &DateTransform{
		InputFormats: []string{"RFC3339", "DateTime", "Date"},
		OutputFormat: "RFC3339",
	}

	if inputFmt, ok := config["input_format"].(string); ok {
		t.InputFormats = []string{inputFmt}
	}
	if outputFmt, ok := config["output_format"].(string); ok {
		t.OutputFormat = outputFmt
	}

	return t, nil
}

func (t *DateTransform) Transform(value interface{}) (interface{}, error) {
	var tm time.Time

	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		var err error
		for _, f := range t.InputFormats {
			if tm, err = parseTime(v, f); err == nil {
				if f == t.OutputFormat {
					return v, nil
				}
				break
			}
		}
		if err != nil {
			return nil, err
		}
	case float64:
		// Unix seconds
		tm = time.Unix(int64(v), 0).UTC()
	case int64:
		tm = time.Unix(v, 0).UTC()
	default:
		return nil, fmt.Errorf("cannot parse date from %T", value)
	}

	return formatTime(tm, t.OutputFormat), nil
}

func parseTime(value string, format string) (time.Time, error) {
	switch format {
	case "RFC3339":
		return time.Parse(time.RFC3339Nano, value)
	case "DateTime":
		return time.ParseInLocation("2006-01-02 15:04:05", value, time.UTC)
	case "Date":
		return time.ParseInLocation("2006-01-02", value, time.UTC)
	default:
		return time.ParseInLocation(format, value, time.UTC)
	}
}

func formatTime(tm time.Time, format string) string {
	switch format {
	case "RFC3339":
		return tm.Format(time.RFC3339Nano)
	case "DateTime":
		return tm.Format("2006-01-02 15:04:05")
	case "Date":
		return tm.Format("2006-01-02")
	case "Unix":
		return strconv.FormatInt(tm.Unix(), 10)
	default:
		return tm.Format(format)
	}
}
