package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/client"
	"github.com/saturnines/ants-tap/pkg/core"
	"github.com/saturnines/ants-tap/pkg/errors"
	"github.com/saturnines/ants-tap/pkg/transform"
)

// ColumnMode selects how the CSV header is derived.
type ColumnMode string

const (
	// ColumnsObserved uses the union of flattened keys in first-seen order.
	ColumnsObserved ColumnMode = "observed"
	// ColumnsSchema uses the declared leaf paths of the stream.
	ColumnsSchema ColumnMode = "schema"
)

// CSVSink writes one {dir}/{stream}.csv file per stream.
type CSVSink struct {
	dir     string
	columns ColumnMode
	logger  *slog.Logger
}

// CSVOption configures a CSVSink
type CSVOption func(*CSVSink)

// WithColumns picks observed or schema derived headers.
func WithColumns(mode ColumnMode) CSVOption {
	return func(s *CSVSink) {
		if mode != "" {
			s.columns = mode
		}
	}
}

// WithCSVLogger sets the logger for written and skipped files.
func WithCSVLogger(logger *slog.Logger) CSVOption {
	return func(s *CSVSink) { s.logger = logger }
}

// NewCSVSink creates a sink writing below dir.
func NewCSVSink(dir string, opts ...CSVOption) *CSVSink {
	s := &CSVSink{dir: dir, columns: ColumnsObserved}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Path returns the file a stream is written to.
func (s *CSVSink) Path(stream string) string {
	return filepath.Join(s.dir, stream+".csv")
}

// Write replaces the stream's file. Streams without records produce no file.
func (s *CSVSink) Write(ctx context.Context, desc catalog.Descriptor, records []client.Record) error {
	if len(records) == 0 {
		s.logger.Info("no records, skipping csv", "stream", desc.Name())
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	header, rows, err := s.table(desc, records)
	if err != nil {
		return errors.WrapError(err, errors.ErrExtraction, "render "+desc.Name())
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := s.Path(desc.Name())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	s.logger.Info("wrote csv", "stream", desc.Name(), "path", path, "records", len(records), "columns", len(header))
	return nil
}

func (s *CSVSink) Close() error { return nil }

func (s *CSVSink) table(desc catalog.Descriptor, records []client.Record) ([]string, [][]string, error) {
	if s.columns == ColumnsSchema {
		header := desc.Columns()
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			row := make([]string, len(header))
			for i, col := range header {
				v, _ := core.ExtractField(rec, col)
				c, err := cell(v)
				if err != nil {
					return nil, nil, err
				}
				row[i] = c
			}
			rows = append(rows, row)
		}
		return header, rows, nil
	}

	flat := make([]transform.FlatRecord, len(records))
	for i, rec := range records {
		flat[i] = transform.Flatten(rec)
	}
	header := ObservedColumns(flat)
	rows := make([][]string, 0, len(flat))
	for _, rec := range flat {
		row := make([]string, len(header))
		for i, col := range header {
			c, err := cell(rec[col])
			if err != nil {
				return nil, nil, err
			}
			row[i] = c
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// ObservedColumns returns the union of keys in first-seen order. Keys new
// to a record are taken in sorted order.
func ObservedColumns(records []transform.FlatRecord) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			columns = append(columns, k)
		}
	}
	return columns
}
