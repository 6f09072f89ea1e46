// Package containers derives the solver's element and coupling-surface
// containers from the leaves of a refinement tree and rebuilds them
// wholesale after every adaptation event.
package containers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notargets/DGAdapt/element"
	"github.com/notargets/DGAdapt/equations"
	"github.com/notargets/DGAdapt/partitions"
	"github.com/notargets/DGAdapt/tree"
)

// Containers is the context passed through reinitialization and evaluation.
// It is owned by a single partition; Reinitialize needs exclusive access.
type Containers struct {
	NDims int
	NVars int

	Equation equations.Equation
	Basis    *element.LGLElement
	Mortar   *element.MortarOperators

	Elements              *Elements
	Interfaces            *Interfaces
	Boundaries            *Boundaries
	Mortars               *Mortars
	DistributedInterfaces *DistributedInterfaces
	DistributedMortars    *DistributedMortars

	// Layout and Cache are nil unless the configuration is distributed
	Layout *partitions.PartitionLayout
	Cache  *partitions.DistributedCache

	cfg    Config
	logger *slog.Logger
}

// Counts summarizes container sizes
type Counts struct {
	Elements              int
	Interfaces            int
	Boundaries            int
	Mortars               int
	DistributedInterfaces int
	DistributedMortars    int
}

// New creates empty containers for trees of t's dimension. Call
// Reinitialize to populate them.
func New(t *tree.Tree, eq equations.Equation, cfg Config) (*Containers, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if eq == nil {
		return nil, fmt.Errorf("containers need an equation")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cache == nil {
		cache, err := element.NewCache(4)
		if err != nil {
			return nil, err
		}
		cfg.Cache = cache
	}
	if cfg.ExchangeTimeout == 0 {
		cfg.ExchangeTimeout = DefaultExchangeTimeout
	}
	ops, err := cfg.Cache.Get(element.Dimensionality(t.NDims), cfg.PolynomialDegree)
	if err != nil {
		return nil, fmt.Errorf("reference operators: %w", err)
	}

	c := &Containers{
		NDims:    t.NDims,
		NVars:    eq.NVariables(),
		Equation: eq,
		Basis:    ops.Element,
		Mortar:   ops.Mortar,
		cfg:      cfg,
		logger:   cfg.Logger.With("rank", cfg.Rank),
	}
	props := c.Basis.GetProperties()
	nsmall := 1 << (c.NDims - 1)
	c.Elements = newElements(0, props.Np, c.NDims, c.NVars)
	c.Interfaces = newInterfaces(0, c.NVars, props.NFp)
	c.Boundaries = newBoundaries(0, c.NDims, c.NVars, props.NFp)
	c.Mortars = newMortars(0, nsmall, c.NVars, props.NFp)
	c.DistributedInterfaces = newDistributedInterfaces(0, c.NVars, props.NFp)
	c.DistributedMortars = newDistributedMortars(0, nsmall, c.NVars, props.NFp)
	return c, nil
}

// Rank returns the partition these containers belong to
func (c *Containers) Rank() int { return c.cfg.Rank }

// Config returns the configuration with defaults applied
func (c *Containers) Config() Config { return c.cfg }

// Counts returns the current container sizes
func (c *Containers) Counts() Counts {
	return Counts{
		Elements:              c.Elements.Count(),
		Interfaces:            c.Interfaces.Count(),
		Boundaries:            c.Boundaries.Count(),
		Mortars:               c.Mortars.Count(),
		DistributedInterfaces: c.DistributedInterfaces.Count(),
		DistributedMortars:    c.DistributedMortars.Count(),
	}
}

// Exchange moves the staged distributed face data to the neighboring
// partitions and receives theirs. It is a no-op for serial containers.
func (c *Containers) Exchange(ctx context.Context) error {
	if c.Cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExchangeTimeout)
	defer cancel()
	return c.Cache.Exchange(ctx, c.cfg.Transport)
}
