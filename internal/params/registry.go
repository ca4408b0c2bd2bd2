package params

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Parameter is one named setting.
type Parameter struct {
	Name  string
	Value Value
	Min   *int
	Max   *int
}

// Bounded returns an integer parameter limited to [min, max].
func Bounded(name string, value, min, max int) Parameter {
	return Parameter{Name: name, Value: Int(value), Min: &min, Max: &max}
}

// check validates v against p without modifying p.
func (p Parameter) check(v Value) error {
	if v.Kind() != p.Value.Kind() {
		return &Error{Name: p.Name, Err: ErrTypeMismatch, Want: p.Value.Kind(), Got: v}
	}
	n, ok := v.Int()
	if !ok {
		return nil
	}
	if (p.Min != nil && n < *p.Min) || (p.Max != nil && n > *p.Max) {
		return &Error{Name: p.Name, Err: ErrOutOfRange, Got: v, Min: p.Min, Max: p.Max}
	}
	return nil
}

// Entry is a rendered name/value pair for user-facing listings.
type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Registry is an insertion-ordered set of parameters. It is safe for
// concurrent use; every update replaces a single value atomically.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	params map[string]Parameter
}

// NewRegistry creates a registry holding defs in the given order. Defaults
// must satisfy their own bounds and names must be unique.
func NewRegistry(defs ...Parameter) (*Registry, error) {
	r := &Registry{params: make(map[string]Parameter, len(defs))}
	for _, p := range defs {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter name is required")
		}
		if _, dup := r.params[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %q", p.Name)
		}
		if err := p.check(p.Value); err != nil {
			return nil, fmt.Errorf("invalid default: %w", err)
		}
		r.order = append(r.order, p.Name)
		r.params[p.Name] = p
	}
	return r, nil
}

// Get returns the named parameter.
func (r *Registry) Get(name string) (Parameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.params[name]
	if !ok {
		return Parameter{}, &Error{Name: name, Err: ErrNotFound}
	}
	return p, nil
}

// Set replaces the value of the named parameter. On error the registry is
// left unchanged.
func (r *Registry) Set(name string, v Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.params[name]
	if !ok {
		return &Error{Name: name, Err: ErrNotFound}
	}
	if err := p.check(v); err != nil {
		return err
	}
	p.Value = v
	r.params[name] = p
	return nil
}

// Snapshot returns a copy of the current parameters in insertion order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(Snapshot, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.params[name])
	}
	return out
}

// Render returns the current "key=value" block.
func (r *Registry) Render() string {
	return r.Snapshot().Render()
}

// Display lists the current values, skipping names in excluded.
func (r *Registry) Display(excluded ...string) []Entry {
	snap := r.Snapshot()
	out := make([]Entry, 0, len(snap))
	for _, p := range snap {
		if slices.Contains(excluded, p.Name) {
			continue
		}
		out = append(out, Entry{Name: p.Name, Value: p.Value.String()})
	}
	return out
}

// Snapshot is a point-in-time copy of a registry.
type Snapshot []Parameter

// Render returns one "key=value" line per parameter, in order, without a
// trailing newline.
func (s Snapshot) Render() string {
	lines := make([]string, len(s))
	for i, p := range s {
		lines[i] = p.Name + "=" + p.Value.String()
	}
	return strings.Join(lines, "\n")
}

// With returns a copy of s where the named parameter holds v. Names not in s
// are ignored. Bounds are not checked; With is meant for per-job values the
// process itself controls, such as output paths.
func (s Snapshot) With(name string, v Value) Snapshot {
	out := slices.Clone(s)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = v
		}
	}
	return out
}
