package geom

import (
	"context"
	"fmt"
	"sync"
)

// Derived is a named quantity computed from other values of the construction.
// Derived quantities are recomputed by Settle in declaration order, so later
// definitions may reference earlier ones.
type Derived struct {
	Name       string
	Expression string
}

// Construction is an in-memory Model: a set of free variables plus derived
// quantities. It stands in for a live geometry backend and is also what the
// CLI and server run against when a problem file is loaded.
type Construction struct {
	mu      sync.RWMutex
	vars    map[string]float64
	derived []Derived
	cache   map[string]float64 // derived name -> last settled value
}

// NewConstruction creates a construction with the given free variables and
// derived definitions. Settle is called once so derived values are available
// immediately.
func NewConstruction(vars map[string]float64, derived []Derived) (*Construction, error) {
	c := &Construction{
		vars:    make(map[string]float64, len(vars)),
		derived: append([]Derived(nil), derived...),
		cache:   make(map[string]float64, len(derived)),
	}
	for name, v := range vars {
		c.vars[name] = v
	}

	if err := c.Settle(context.Background()); err != nil {
		return nil, fmt.Errorf("initial settle failed: %w", err)
	}
	return c, nil
}

// Value returns the current value of a free variable or derived quantity.
func (c *Construction) Value(name string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.vars[name]; ok {
		return v, nil
	}
	if v, ok := c.cache[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown variable: %s", name)
}

// SetValues writes free variable values. Derived quantities are stale until
// the next Settle.
func (c *Construction) SetValues(values map[string]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name := range values {
		if _, ok := c.vars[name]; !ok {
			return fmt.Errorf("unknown variable: %s", name)
		}
	}
	for name, v := range values {
		c.vars[name] = v
	}
	return nil
}

// Settle recomputes all derived quantities in declaration order.
func (c *Construction) Settle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.derived {
		v, err := evalExpr(d.Expression, c.lookupLocked)
		if err != nil {
			return fmt.Errorf("derived %q: %w", d.Name, err)
		}
		c.cache[d.Name] = v
	}
	return nil
}

// Evaluate computes an expression against the current construction state.
func (c *Construction) Evaluate(expr string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return evalExpr(expr, c.lookupLocked)
}

func (c *Construction) lookupLocked(name string) (float64, bool) {
	if v, ok := c.vars[name]; ok {
		return v, true
	}
	v, ok := c.cache[name]
	return v, ok
}

// VariableNames returns the names of all free variables.
func (c *Construction) VariableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	return names
}
