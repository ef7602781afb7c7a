// Package catalog declares the resources the tap can extract: where each one
// is fetched from and the shape of its records.
package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/saturnines/ants-tap/pkg/errors"
)

// Kind tags one of the closed set of resources.
type Kind string

const (
	Products     Kind = "products"
	Orders       Kind = "orders"
	OrderDetails Kind = "order_details"
	OrderItems   Kind = "order_items"
)

// Derivation describes a resource that is fetched one entity at a time,
// keyed off ids found in the records of a parent resource.
type Derivation struct {
	Parent Kind
	// RefPath is the dotted path inside a parent record holding the
	// references. Empty means the parent record itself is the reference.
	RefPath string
	// ItemPath is the entity endpoint, with %s replaced by the id.
	ItemPath string
}

// Descriptor is the static description of one resource.
type Descriptor struct {
	Kind       Kind
	Path       string // collection endpoint, empty for derived resources
	PrimaryKey string
	Derivation *Derivation
	Schema     []Field
}

// Name returns the stream name.
func (d Descriptor) Name() string { return string(d.Kind) }

// Derived reports whether records come from per-entity fetches.
func (d Descriptor) Derived() bool { return d.Derivation != nil }

// ItemURLPath builds the entity endpoint for a derived record. The id is
// escaped as a single path segment.
func (d Descriptor) ItemURLPath(id string) string {
	if d.Derivation == nil {
		return ""
	}
	return fmt.Sprintf(d.Derivation.ItemPath, escapeSegment(id))
}

func escapeSegment(id string) string {
	if id == "." || id == ".." {
		return strings.Repeat("%2E", len(id))
	}
	return url.PathEscape(id)
}

var descriptors = []Descriptor{
	{Kind: Products, Path: "/v3/products", PrimaryKey: "id", Schema: productSchema},
	{Kind: Orders, Path: "/v3/orders", PrimaryKey: "id", Schema: orderSchema},
	{
		Kind:       OrderDetails,
		PrimaryKey: "id",
		Derivation: &Derivation{Parent: Orders, ItemPath: "/v3/orders/%s"},
		Schema:     orderDetailSchema,
	},
	{
		Kind:       OrderItems,
		PrimaryKey: "id",
		Derivation: &Derivation{
			Parent:   OrderDetails,
			RefPath:  "relationships.orderItems.data",
			ItemPath: "/v3/orderitems/%s",
		},
		Schema: orderItemSchema,
	},
}

var byName = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.Name()] = d
	}
	return m
}()

// Describe returns the descriptor for a stream name.
func Describe(name string) (Descriptor, error) {
	d, ok := byName[name]
	if !ok {
		return Descriptor{}, errors.WrapError(
			fmt.Errorf("unknown resource %q", name),
			errors.ErrConfiguration,
			"describe resource",
		)
	}
	return d, nil
}

// MustDescribe is Describe for the built-in kinds.
func MustDescribe(k Kind) Descriptor {
	d, err := Describe(string(k))
	if err != nil {
		panic(err)
	}
	return d
}

// All returns every descriptor in sync order (parents before children).
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Names returns every stream name in sync order.
func Names() []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name()
	}
	return names
}

// Select resolves stream names, keeping catalog order. Empty selects all.
func Select(names []string) ([]Descriptor, error) {
	if len(names) == 0 {
		return All(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, err := Describe(n); err != nil {
			return nil, err
		}
		want[n] = true
	}
	var out []Descriptor
	for _, d := range descriptors {
		if want[d.Name()] {
			out = append(out, d)
		}
	}
	return out, nil
}
