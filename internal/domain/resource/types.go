package resource

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidKind   = errors.New("invalid resource kind")
	ErrEmptyResource = errors.New("resource has neither content nor uri")
	ErrAmbiguous     = errors.New("resource has both content and uri")
	ErrUnknownSlot   = errors.New("unknown editor content slot")

	// ErrUnknownFramework is returned when a framework name is not in the catalog
	ErrUnknownFramework = errors.New("unknown framework")
)

// Kind distinguishes framework headers from library files
type Kind string

const (
	KindHeader  Kind = "header"
	KindLibrary Kind = "library"
)

// Descriptor describes one framework or library resource.
// Exactly one of Content and URI is set.
type Descriptor struct {
	Kind      Kind   `json:"kind" yaml:"kind" toml:"kind"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Framework string `json:"framework,omitempty" yaml:"framework,omitempty" toml:"framework,omitempty"`
	Content   string `json:"content,omitempty" yaml:"content,omitempty" toml:"content,omitempty"`
	URI       string `json:"uri,omitempty" yaml:"uri,omitempty" toml:"uri,omitempty"`
	MediaType string `json:"media_type,omitempty" yaml:"media_type,omitempty" toml:"media_type,omitempty"`
	Order     int    `json:"order" yaml:"order" toml:"order"`
}

// Inline reports whether the descriptor carries its content directly
func (d Descriptor) Inline() bool {
	return d.URI == ""
}

// Validate checks the descriptor invariants
func (d Descriptor) Validate() error {
	switch d.Kind {
	case KindHeader, KindLibrary:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
	}
	if d.Content == "" && d.URI == "" {
		return fmt.Errorf("%w: %s", ErrEmptyResource, d.label())
	}
	if d.Content != "" && d.URI != "" {
		return fmt.Errorf("%w: %s", ErrAmbiguous, d.label())
	}
	return nil
}

func (d Descriptor) label() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("%s#%d", d.Kind, d.Order)
}

// Collection is an ordered, immutable sequence of descriptors
type Collection struct {
	items []Descriptor
}

// NewCollection copies descs and orders them stably by Order.
// Descriptors sharing an Order keep their insertion order.
func NewCollection(descs ...Descriptor) Collection {
	items := make([]Descriptor, len(descs))
	copy(items, descs)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
	return Collection{items: items}
}

// Append returns a new collection holding c's descriptors followed by descs,
// re-sorted by Order
func (c Collection) Append(descs ...Descriptor) Collection {
	merged := make([]Descriptor, 0, len(c.items)+len(descs))
	merged = append(merged, c.items...)
	merged = append(merged, descs...)
	return NewCollection(merged...)
}

// All returns a copy of every descriptor in order
func (c Collection) All() []Descriptor {
	return append([]Descriptor(nil), c.items...)
}

// Len returns the number of descriptors
func (c Collection) Len() int {
	return len(c.items)
}

// Headers returns the header descriptors bound to framework, in order
func (c Collection) Headers(framework string) []Descriptor {
	var out []Descriptor
	for _, d := range c.items {
		if d.Kind == KindHeader && d.Framework == framework {
			out = append(out, d)
		}
	}
	return out
}

// Libraries returns the library descriptors, in order
func (c Collection) Libraries() []Descriptor {
	var out []Descriptor
	for _, d := range c.items {
		if d.Kind == KindLibrary {
			out = append(out, d)
		}
	}
	return out
}

// Library finds the first library descriptor with the given name
func (c Collection) Library(name string) (Descriptor, bool) {
	for _, d := range c.items {
		if d.Kind == KindLibrary && d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Concat joins collections end to end and renumbers Order sequentially
func Concat(cols ...Collection) Collection {
	var descs []Descriptor
	for _, col := range cols {
		for _, d := range col.items {
			d.Order = len(descs)
			descs = append(descs, d)
		}
	}
	return Collection{items: descs}
}

// Validate checks every descriptor
func (c Collection) Validate() error {
	for _, d := range c.items {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Slot identifies an editor content area
type Slot string

const (
	SlotDefault    Slot = "default"
	SlotCSS        Slot = "css"
	SlotJavaScript Slot = "javascript"
)

// KnownSlots lists the slots renderers understand
var KnownSlots = []Slot{SlotDefault, SlotCSS, SlotJavaScript}

// EditorContent maps editor slots to raw source text
type EditorContent map[Slot]string

// Default returns the default slot, or "" when absent
func (e EditorContent) Default() string {
	return e[SlotDefault]
}

// Get returns the text for slot, or "" when absent
func (e EditorContent) Get(slot Slot) string {
	return e[slot]
}

// Validate rejects slots no renderer knows about. Empty content is valid and
// renders to an empty body.
func (e EditorContent) Validate() error {
	for slot := range e {
		known := false
		for _, k := range KnownSlots {
			if slot == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
		}
	}
	return nil
}
