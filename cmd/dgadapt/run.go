package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/DGAdapt/containers"
	"github.com/notargets/DGAdapt/element"
	"github.com/notargets/DGAdapt/equations"
	"github.com/notargets/DGAdapt/indicator"
	"github.com/notargets/DGAdapt/partitions"
	"github.com/notargets/DGAdapt/tree"
	"github.com/notargets/DGAdapt/utils"
)

// RankSummary describes one partition after the last adaptation step
type RankSummary struct {
	Rank   int
	Counts containers.Counts
	// MaxIndicator is the largest smoothed indicator value
	MaxIndicator float64
	// Active counts elements whose smoothed indicator reaches the threshold
	Active int
}

// Summary is the result of running a script
type Summary struct {
	Leaves   int
	MaxLevel int
	Steps    int
	Ranks    []RankSummary
}

// Run builds the tree, applies every step with a reinitialization after
// each, and evaluates the smoothed jump indicator of the initial state
func Run(ctx context.Context, s *Script, logger *slog.Logger) (*Summary, error) {
	t, err := tree.New(s.Mesh)
	if err != nil {
		return nil, err
	}
	if err := t.RefineUniform(s.Uniform); err != nil {
		return nil, err
	}
	eq, err := equations.FromConfig(s.Equation)
	if err != nil {
		return nil, err
	}
	cache, err := element.NewCache(4)
	if err != nil {
		return nil, err
	}

	n := max(s.Containers.NumPartitions, 1)
	var hub *partitions.ChannelTransport
	if n > 1 {
		hub = partitions.NewChannelTransport(n, 4)
	}
	cs := make([]*containers.Containers, n)
	for r := range cs {
		cfg := s.Containers
		cfg.Rank = r
		cfg.Logger = logger
		cfg.Cache = cache
		if hub != nil {
			cfg.Transport = hub.Endpoint(r)
		}
		if cs[r], err = containers.New(t, eq, cfg); err != nil {
			return nil, err
		}
	}

	// Partitions only read the tree, so they rebuild concurrently
	reinitialize := func() error {
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range cs {
			g.Go(func() error { return c.Reinitialize(gctx, t) })
		}
		return g.Wait()
	}
	if err := reinitialize(); err != nil {
		return nil, err
	}
	for i, st := range s.Steps {
		if err := st.Apply(t); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := t.Verify(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := reinitialize(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		logger.Info("adaptation step", "step", i, "leaves", len(t.LeafCells()), "max_level", t.MaxLevel())
	}

	if err := evaluate(ctx, s, cs); err != nil {
		return nil, err
	}
	sum := &Summary{Leaves: len(t.LeafCells()), MaxLevel: t.MaxLevel(), Steps: len(s.Steps)}
	alphas, err := smooth(s.Indicator, cs, logger)
	if err != nil {
		return nil, err
	}
	for r, c := range cs {
		rs := RankSummary{Rank: r, Counts: c.Counts()}
		for _, a := range alphas[r] {
			rs.MaxIndicator = max(rs.MaxIndicator, a)
			if a >= s.Indicator.Threshold {
				rs.Active++
			}
		}
		sum.Ranks = append(sum.Ranks, rs)
	}
	return sum, nil
}

// evaluate fills the initial state and brings every surface trace up to
// date, exchanging distributed faces
func evaluate(ctx context.Context, s *Script, cs []*containers.Containers) error {
	state := s.Initial.State(s.Mesh.NDims)
	for _, c := range cs {
		c.Elements.Fill(state)
		c.ProlongToInterfaces()
		c.ProlongToBoundaries()
		c.ProlongToMortars()
		c.ProlongToDistributed()
		c.PackDistributed()
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range cs {
		g.Go(func() error { return c.Exchange(gctx) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	for _, c := range cs {
		c.UnpackDistributed()
	}
	return nil
}

func smooth(cfg Indicator, cs []*containers.Containers, logger *slog.Logger) ([][]float64, error) {
	alphas := make([][]float64, len(cs))
	for r, c := range cs {
		alphas[r] = indicator.Jumps(c, 0)
	}
	if cfg.Device == "" {
		for r, c := range cs {
			indicator.Smooth(alphas[r], c)
		}
		return alphas, nil
	}

	device, err := utils.CreateDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	defer device.Free()
	logger.Info("smoothing on device", "mode", device.Mode())
	for r, c := range cs {
		if c.Elements.Count() == 0 {
			continue
		}
		ds, err := indicator.NewDeviceSmoother(device, indicator.Links(c))
		if err != nil {
			return nil, err
		}
		err = ds.Smooth(alphas[r])
		ds.Free()
		if err != nil {
			return nil, err
		}
	}
	return alphas, nil
}

// Print writes the summary as plain text
func (sum *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "leaves %d, max level %d, steps %d\n", sum.Leaves, sum.MaxLevel, sum.Steps)
	for _, rs := range sum.Ranks {
		c := rs.Counts
		fmt.Fprintf(w, "rank %d: elements %d interfaces %d boundaries %d mortars %d"+
			" distributed interfaces %d distributed mortars %d indicator max %.4g active %d\n",
			rs.Rank, c.Elements, c.Interfaces, c.Boundaries, c.Mortars,
			c.DistributedInterfaces, c.DistributedMortars, rs.MaxIndicator, rs.Active)
	}
}
