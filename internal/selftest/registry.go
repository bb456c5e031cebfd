package selftest

import (
	"errors"
	"fmt"
)

// Registration errors. All of them surface during process initialization;
// a registry that constructed without error never fails at run time.
var (
	ErrDuplicateUnit    = errors.New("duplicate test unit")
	ErrReservedCategory = errors.New("category is reserved for runner integrity checks")
	ErrInvalidUnit      = errors.New("invalid test unit")
)

type unitKey struct {
	cat  Category
	desc Descriptor
}

// Registry maps (category, descriptor) pairs to executable test units. It
// is populated once during initialization and immutable afterwards, so
// concurrent lookups from independent operations need no locking.
//
// The two integrity categories cannot be registered: the runner builds
// those checks itself, which keeps exactly one live instance of each per
// process.
type Registry struct {
	units []Unit
	index map[unitKey]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[unitKey]int)}
}

// Register adds a unit. Registering a duplicate (category, descriptor)
// pair, an integrity category, an unrecognized tag, or a unit without a
// Run function is a configuration error.
func (r *Registry) Register(u Unit) error {
	if u.Run == nil {
		return fmt.Errorf("register %s/%s: %w: nil Run", u.Category, u.Descriptor, ErrInvalidUnit)
	}
	if !u.Category.Known() {
		return fmt.Errorf("register %s/%s: %w: unknown category", u.Category, u.Descriptor, ErrInvalidUnit)
	}
	if !u.Descriptor.Known() {
		return fmt.Errorf("register %s/%s: %w: unknown descriptor", u.Category, u.Descriptor, ErrInvalidUnit)
	}
	if u.Category.Integrity() {
		return fmt.Errorf("register %s/%s: %w", u.Category, u.Descriptor, ErrReservedCategory)
	}

	key := unitKey{u.Category, u.Descriptor}
	if _, exists := r.index[key]; exists {
		return fmt.Errorf("register %s/%s: %w", u.Category, u.Descriptor, ErrDuplicateUnit)
	}

	r.index[key] = len(r.units)
	r.units = append(r.units, u)
	return nil
}

// Lookup returns the unit registered under (cat, desc).
func (r *Registry) Lookup(cat Category, desc Descriptor) (Unit, bool) {
	i, ok := r.index[unitKey{cat, desc}]
	if !ok {
		return Unit{}, false
	}
	return r.units[i], true
}

// Units returns all registered units in registration order.
func (r *Registry) Units() []Unit {
	out := make([]Unit, len(r.units))
	copy(out, r.units)
	return out
}

// UnitsIn returns the registered units belonging to the given categories,
// in registration order.
func (r *Registry) UnitsIn(cats ...Category) []Unit {
	want := make(map[Category]bool, len(cats))
	for _, c := range cats {
		want[c] = true
	}
	var out []Unit
	for _, u := range r.units {
		if want[u.Category] {
			out = append(out, u)
		}
	}
	return out
}

// Len returns the number of registered units.
func (r *Registry) Len() int { return len(r.units) }
