// Package core turns catalog descriptors into record sequences, expanding
// derived resources into one entity fetch per parent reference.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/client"
)

// Fetcher performs the remote calls. *client.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]client.Record, error)
	FetchOne(ctx context.Context, path string) (client.Record, error)
}

// Orchestrator produces the records of a resource kind.
type Orchestrator struct {
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithConcurrency bounds the number of derived fetches in flight.
// Values below 2 fetch sequentially.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithLogger sets the logger for derived fetch progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates an Orchestrator around f.
func New(f Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{fetcher: f, concurrency: 1}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Records returns the records of kind as a lazy sequence. Each iteration
// refetches. A failure ends the sequence: records fetched before it are
// yielded first, then the error.
func (o *Orchestrator) Records(ctx context.Context, kind catalog.Kind) iter.Seq2[client.Record, error] {
	return func(yield func(client.Record, error) bool) {
		desc, err := catalog.Describe(string(kind))
		if err != nil {
			yield(nil, err)
			return
		}

		if !desc.Derived() {
			records, err := o.fetcher.Fetch(ctx, desc.Path)
			if err != nil {
				yield(nil, fmt.Errorf("fetch %s: %w", desc.Name(), err))
				return
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
			return
		}

		parents, err := o.Collect(ctx, desc.Derivation.Parent)
		if err != nil {
			yield(nil, err)
			return
		}
		ids := ReferenceIDs(parents, desc.Derivation.RefPath)
		o.logger.Debug("expanding derived resource",
			"stream", desc.Name(),
			"parent", string(desc.Derivation.Parent),
			"parents", len(parents),
			"references", len(ids),
		)

		if o.concurrency < 2 {
			for _, id := range ids {
				rec, err := o.fetchItem(ctx, desc, id)
				if !yield(rec, err) || err != nil {
					return
				}
			}
			return
		}
		o.fanOut(ctx, desc, ids, yield)
	}
}

// Collect materialises Records. On failure it returns the records fetched
// before the error together with the error.
func (o *Orchestrator) Collect(ctx context.Context, kind catalog.Kind) ([]client.Record, error) {
	records := []client.Record{}
	for rec, err := range o.Records(ctx, kind) {
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (o *Orchestrator) fetchItem(ctx context.Context, desc catalog.Descriptor, id string) (client.Record, error) {
	rec, err := o.fetcher.FetchOne(ctx, desc.ItemURLPath(id))
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", desc.Name(), id, err)
	}
	return rec, nil
}

// fanOut fetches ids with bounded concurrency and yields the results in
// upstream order, stopping at the first failed index.
func (o *Orchestrator) fanOut(ctx context.Context, desc catalog.Descriptor, ids []string, yield func(client.Record, error) bool) {
	results := make([]client.Record, len(ids))
	errs := make([]error, len(ids))

	// lowest failed index; later ids are not fetched once it is set
	var failed atomic.Int64
	failed.Store(int64(len(ids)))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, id := range ids {
		if int64(i) > failed.Load() {
			break
		}
		g.Go(func() error {
			if int64(i) > failed.Load() {
				return nil
			}
			rec, err := o.fetchItem(ctx, desc, id)
			if err != nil {
				errs[i] = err
				for {
					cur := failed.Load()
					if int64(i) >= cur || failed.CompareAndSwap(cur, int64(i)) {
						break
					}
				}
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	for i := range ids {
		if errs[i] != nil {
			yield(nil, errs[i])
			return
		}
		if !yield(results[i], nil) {
			return
		}
	}
}

// ReferenceIDs returns the ids to expand, in upstream order. With an empty
// refPath the parents' own ids are used; otherwise refPath names a list of
// {"id": ...} references inside each parent. Missing and null ids are
// skipped. Duplicates are kept.
func ReferenceIDs(parents []client.Record, refPath string) []string {
	var ids []string
	for _, parent := range parents {
		if refPath == "" {
			if id, ok := stringID(parent["id"]); ok {
				ids = append(ids, id)
			}
			continue
		}

		refs, ok := ExtractField(parent, refPath)
		if !ok {
			continue
		}
		switch v := refs.(type) {
		case []interface{}:
			for _, ref := range v {
				if m, ok := ref.(map[string]interface{}); ok {
					if id, ok := stringID(m["id"]); ok {
						ids = append(ids, id)
					}
				}
			}
		case map[string]interface{}:
			// to-one relationship
			if id, ok := stringID(v["id"]); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// stringID renders an id for use in a URL path. JSON numbers decode as
// float64 and are printed without a fraction when they are whole.
func stringID(v interface{}) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case json.Number:
		return id.String(), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	}
	return fmt.Sprint(v), true
}
