package sink

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/client"
)

// SchemaMessage announces a stream and its JSON schema.
type SchemaMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Schema        map[string]interface{} `json:"schema"`
	KeyProperties []string               `json:"key_properties"`
}

// RecordMessage carries one record of a stream.
type RecordMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted string                 `json:"time_extracted"`
}

// SingerSink writes SCHEMA and RECORD messages as JSON lines, the format
// consumed by Singer targets.
type SingerSink struct {
	mu        sync.Mutex
	enc       *json.Encoder
	announced map[string]bool
	now       func() time.Time
}

// NewSingerSink writes messages to w.
func NewSingerSink(w io.Writer) *SingerSink {
	return &SingerSink{
		enc:       json.NewEncoder(w),
		announced: make(map[string]bool),
		now:       time.Now,
	}
}

// Write emits the stream's SCHEMA once, then one RECORD per record.
func (s *SingerSink) Write(ctx context.Context, desc catalog.Descriptor, records []client.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.announced[desc.Name()] {
		msg := SchemaMessage{
			Type:          "SCHEMA",
			Stream:        desc.Name(),
			Schema:        desc.JSONSchema(),
			KeyProperties: []string{desc.PrimaryKey},
		}
		if err := s.enc.Encode(msg); err != nil {
			return err
		}
		s.announced[desc.Name()] = true
	}

	extracted := s.now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := RecordMessage{Type: "RECORD", Stream: desc.Name(), Record: rec, TimeExtracted: extracted}
		if err := s.enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *SingerSink) Close() error { return nil }
