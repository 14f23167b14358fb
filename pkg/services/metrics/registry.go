package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"golang.org/x/exp/maps"
)

type Kind int

const (
	KindScalar Kind = iota
	KindRows
)

func (k Kind) String() string {
	if k == KindRows {
		return "rows"
	}
	return "scalar"
}

type scalarFunc func(ctx context.Context, e *engine, req Request) (float64, error)
type rowsFunc func(ctx context.Context, e *engine, req Request) (domain.RowSet, error)

// Definition describes one named metric.
type Definition struct {
	Name   string
	Label  string
	Group  string
	Kind   Kind
	Format domain.Format

	scalar scalarFunc
	rows   rowsFunc
}

// Registry holds metric definitions by name.
type Registry interface {
	// Register adds a definition; names must be unique
	Register(def Definition) error
	Lookup(name string) (Definition, bool)
	// Names returns the registered names in sorted order
	Names() []string
	All() map[string]Definition
}

type registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry() Registry {
	return &registry{
		defs: make(map[string]Definition),
	}
}

// DefaultRegistry returns a registry loaded with every built-in metric.
func DefaultRegistry() (Registry, error) {
	r := NewRegistry()
	groups := [][]Definition{
		financialMetrics(),
		ticketMetrics(),
		clientMetrics(),
		operationsMetrics(),
	}
	for _, defs := range groups {
		for _, def := range defs {
			if err := r.Register(def); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("metric name cannot be empty")
	}
	if (def.Kind == KindScalar && def.scalar == nil) || (def.Kind == KindRows && def.rows == nil) {
		return fmt.Errorf("metric %q has no compute function", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("metric %q is already registered", def.Name)
	}

	r.defs[def.Name] = def
	return nil
}

func (r *registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

func (r *registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *registry) All() map[string]Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.defs)
}

func scalarDef(name, label, group string, format domain.Format, fn scalarFunc) Definition {
	return Definition{Name: name, Label: label, Group: group, Kind: KindScalar, Format: format, scalar: fn}
}

func rowsDef(name, label, group string, fn rowsFunc) Definition {
	return Definition{Name: name, Label: label, Group: group, Kind: KindRows, Format: domain.FormatNumber, rows: fn}
}

// sqlScalar defines a metric as a single-value query.
func sqlScalar(name, label, group string, format domain.Format, build func(q *query) string) Definition {
	return scalarDef(name, label, group, format, func(ctx context.Context, e *engine, req Request) (float64, error) {
		q := newQuery(req)
		return e.queryScalar(ctx, build(q), q.args...)
	})
}

// sqlRows defines a metric as a row-set query with optional post-processing.
func sqlRows(name, label, group string, build func(q *query) string, post ...func(*domain.RowSet, Request)) Definition {
	return rowsDef(name, label, group, func(ctx context.Context, e *engine, req Request) (domain.RowSet, error) {
		q := newQuery(req)
		rs, err := e.queryRows(ctx, build(q), q.args...)
		if err != nil {
			return domain.RowSet{}, err
		}
		for _, p := range post {
			p(&rs, req)
		}
		return rs, nil
	})
}
