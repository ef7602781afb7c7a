package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/client"
	"github.com/saturnines/ants-tap/pkg/errors"
	"github.com/saturnines/ants-tap/pkg/logging"
)

// fakeFetcher serves canned lists and entities and records every call.
type fakeFetcher struct {
	mu       sync.Mutex
	lists    map[string][]client.Record
	entities map[string]client.Record
	fail     map[string]error
	calls    []string
}

func (f *fakeFetcher) record(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	return f.fail[path]
}

func (f *fakeFetcher) Fetch(_ context.Context, path string) ([]client.Record, error) {
	if err := f.record(path); err != nil {
		return nil, err
	}
	return f.lists[path], nil
}

func (f *fakeFetcher) FetchOne(_ context.Context, path string) (client.Record, error) {
	if err := f.record(path); err != nil {
		return nil, err
	}
	rec, ok := f.entities[path]
	if !ok {
		return client.Record{}, nil
	}
	return rec, nil
}

func (f *fakeFetcher) oneCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "/v3/orders" && c != "/v3/products" {
			out = append(out, c)
		}
	}
	return out
}

func ordersFixture() *fakeFetcher {
	return &fakeFetcher{
		lists: map[string][]client.Record{
			"/v3/orders": {{"id": float64(1)}, {"id": nil}, {"id": float64(3)}},
			"/v3/products": {
				{"id": float64(10), "type": "products"},
				{"id": float64(11), "type": "products"},
			},
		},
		entities: map[string]client.Record{
			"/v3/orders/1": {"id": float64(1), "relationships": map[string]interface{}{
				"orderItems": map[string]interface{}{"data": []interface{}{
					map[string]interface{}{"type": "orderitems", "id": "a"},
					map[string]interface{}{"type": "orderitems"},
					map[string]interface{}{"type": "orderitems", "id": "b"},
				}},
			}},
			"/v3/orders/3": {"id": float64(3), "relationships": map[string]interface{}{
				"orderItems": map[string]interface{}{"data": []interface{}{
					map[string]interface{}{"type": "orderitems", "id": "c"},
				}},
			}},
			"/v3/orderitems/a": {"id": "a"},
			"/v3/orderitems/b": {"id": "b"},
			"/v3/orderitems/c": {"id": "c"},
		},
		fail: map[string]error{},
	}
}

func newOrchestrator(f Fetcher, opts ...Option) *Orchestrator {
	return New(f, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func ids(records []client.Record) []interface{} {
	out := make([]interface{}, len(records))
	for i, r := range records {
		out[i] = r["id"]
	}
	return out
}

func TestRecords_Collection(t *testing.T) {
	f := ordersFixture()
	records, err := newOrchestrator(f).Collect(context.Background(), catalog.Products)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(10), float64(11)}, ids(records))
	assert.Equal(t, []string{"/v3/products"}, f.calls)
}

func TestRecords_OrderDetailsSkipNullIDs(t *testing.T) {
	f := ordersFixture()
	records, err := newOrchestrator(f).Collect(context.Background(), catalog.OrderDetails)
	require.NoError(t, err)

	assert.Equal(t, []string{"/v3/orders/1", "/v3/orders/3"}, f.oneCalls())
	assert.Equal(t, []interface{}{float64(1), float64(3)}, ids(records))
}

func TestRecords_OrderItems(t *testing.T) {
	f := ordersFixture()
	records, err := newOrchestrator(f).Collect(context.Background(), catalog.OrderItems)
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"a", "b", "c"}, ids(records))
	assert.Equal(t, []string{
		"/v3/orders/1", "/v3/orders/3",
		"/v3/orderitems/a", "/v3/orderitems/b", "/v3/orderitems/c",
	}, f.oneCalls())
}

func TestRecords_ErrorAfterPartialOutput(t *testing.T) {
	f := ordersFixture()
	f.fail["/v3/orders/3"] = &errors.HTTPError{StatusCode: 500, URL: "/v3/orders/3"}

	var got []client.Record
	var gotErr error
	for rec, err := range newOrchestrator(f).Records(context.Background(), catalog.OrderDetails) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, rec)
	}

	assert.Equal(t, []interface{}{float64(1)}, ids(got))
	require.Error(t, gotErr)
	assert.Equal(t, 500, errors.StatusCode(gotErr))
	assert.Contains(t, gotErr.Error(), "order_details")
}

func TestRecords_ParentFailure(t *testing.T) {
	f := ordersFixture()
	f.fail["/v3/orders"] = fmt.Errorf("boom")

	records, err := newOrchestrator(f).Collect(context.Background(), catalog.OrderItems)
	require.Error(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.oneCalls())
}

func TestRecords_StopsWhenConsumerStops(t *testing.T) {
	f := ordersFixture()
	for range newOrchestrator(f).Records(context.Background(), catalog.OrderDetails) {
		break
	}
	assert.Equal(t, []string{"/v3/orders/1"}, f.oneCalls())
}

func TestRecords_ReinvocationRefetches(t *testing.T) {
	f := ordersFixture()
	o := newOrchestrator(f)
	_, err := o.Collect(context.Background(), catalog.Orders)
	require.NoError(t, err)
	_, err = o.Collect(context.Background(), catalog.Orders)
	require.NoError(t, err)
	assert.Len(t, f.calls, 2)
}

func TestRecords_UnknownKind(t *testing.T) {
	_, err := newOrchestrator(ordersFixture()).Collect(context.Background(), catalog.Kind("invoices"))
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestRecords_Concurrent(t *testing.T) {
	f := ordersFixture()
	records, err := newOrchestrator(f, WithConcurrency(4)).Collect(context.Background(), catalog.OrderItems)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, ids(records))

	calls := f.oneCalls()
	sort.Strings(calls)
	assert.Equal(t, []string{
		"/v3/orderitems/a", "/v3/orderitems/b", "/v3/orderitems/c",
		"/v3/orders/1", "/v3/orders/3",
	}, calls)
}

func TestRecords_ConcurrentOrderedPrefix(t *testing.T) {
	f := ordersFixture()
	f.fail["/v3/orderitems/b"] = &errors.HTTPError{StatusCode: 404}

	records, err := newOrchestrator(f, WithConcurrency(3)).Collect(context.Background(), catalog.OrderItems)
	require.Error(t, err)
	assert.Equal(t, 404, errors.StatusCode(err))
	assert.Equal(t, []interface{}{"a"}, ids(records))
}

func TestRecords_EscapesReferenceIDs(t *testing.T) {
	f := &fakeFetcher{
		lists: map[string][]client.Record{
			"/v3/orders": {{"id": "7?include=x"}, {"id": "../products"}, {"id": "a b"}},
		},
		fail: map[string]error{},
	}
	_, err := newOrchestrator(f).Collect(context.Background(), catalog.OrderDetails)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/v3/orders/7%3Finclude=x",
		"/v3/orders/..%2Fproducts",
		"/v3/orders/a%20b",
	}, f.oneCalls())
}

func TestReferenceIDs(t *testing.T) {
	parents := []client.Record{
		{"id": float64(7)},
		{"id": "x"},
		{"id": ""},
		{},
		{"id": float64(2.5)},
		{"id": float64(7)},
	}
	assert.Equal(t, []string{"7", "x", "2.5", "7"}, ReferenceIDs(parents, ""))

	toOne := []client.Record{{"rel": map[string]interface{}{"data": map[string]interface{}{"id": float64(4)}}}}
	assert.Equal(t, []string{"4"}, ReferenceIDs(toOne, "rel.data"))
	assert.Empty(t, ReferenceIDs(toOne, "missing.path"))
}
