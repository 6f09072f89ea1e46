package main

import (
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/notargets/DGAdapt/containers"
	"github.com/notargets/DGAdapt/equations"
	"github.com/notargets/DGAdapt/tree"
)

// Script describes a mesh, the containers built over it and a sequence of
// adaptation events
type Script struct {
	Mesh       tree.Config       `yaml:"mesh"`
	Containers containers.Config `yaml:"containers"`
	Equation   equations.Config  `yaml:"equation"`

	// Uniform refines the root to this level before the first step
	Uniform int `yaml:"uniform" validate:"min=0,max=12"`

	Initial   Pulse     `yaml:"initial"`
	Steps     []Step    `yaml:"steps" validate:"dive"`
	Indicator Indicator `yaml:"indicator"`
}

// Pulse is a Gaussian initial state on the first variable
type Pulse struct {
	Center    [3]float64 `yaml:"center"`
	Width     float64    `yaml:"width" validate:"gte=0"`
	Amplitude float64    `yaml:"amplitude"`
}

// Step is one adaptation event. Refine splits the leaves whose centers lie
// in the region; Coarsen merges the parents of such leaves when all of
// their children are leaves.
type Step struct {
	Refine   *Region `yaml:"refine"`
	Coarsen  *Region `yaml:"coarsen"`
	Balanced bool    `yaml:"balanced"`
}

// Region is an axis-aligned box, inclusive on both ends
type Region struct {
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`
}

// Indicator selects how the jump indicator is smoothed
type Indicator struct {
	// Device is an OCCA mode ("serial", "openmp", "cuda"); empty smooths on
	// the host
	Device    string  `yaml:"device" validate:"omitempty,oneof=serial openmp cuda"`
	Threshold float64 `yaml:"threshold" validate:"gte=0"`
}

var validate = validator.New()

// LoadScript reads and validates a YAML script
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the script %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML script
func ParseScript(data []byte) (*Script, error) {
	s := &Script{
		Mesh:       tree.Config{NDims: 1, Length: 1},
		Containers: containers.Config{PolynomialDegree: 1},
		Equation:   equations.Config{Name: "advection", Velocity: [3]float64{1, 0, 0}},
		Initial:    Pulse{Width: 0.1, Amplitude: 1},
		Indicator:  Indicator{Threshold: 0.1},
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse the script: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	for i, st := range s.Steps {
		if (st.Refine == nil) == (st.Coarsen == nil) {
			return nil, fmt.Errorf("step %d: exactly one of refine or coarsen is required", i)
		}
	}
	return s, nil
}

func (r *Region) contains(ndims int, x [3]float64) bool {
	for a := 0; a < ndims; a++ {
		if x[a] < r.Min[a] || x[a] > r.Max[a] {
			return false
		}
	}
	return true
}

// Apply performs the adaptation event on t
func (st Step) Apply(t *tree.Tree) error {
	if st.Refine != nil {
		var cells []int
		for _, id := range t.LeafCells() {
			if st.Refine.contains(t.NDims, t.Center(id)) {
				cells = append(cells, id)
			}
		}
		var err error
		if st.Balanced {
			_, err = t.RefineBalanced(cells)
		} else {
			_, err = t.Refine(cells)
		}
		return err
	}

	seen := make(map[int]bool)
	var parents []int
	for _, id := range t.LeafCells() {
		p := t.Parent(id)
		if p == tree.None || seen[p] || !st.Coarsen.contains(t.NDims, t.Center(id)) {
			continue
		}
		seen[p] = true
		if mergeable(t, p) {
			parents = append(parents, p)
		}
	}
	return t.Coarsen(parents)
}

func mergeable(t *tree.Tree, parent int) bool {
	for _, ch := range t.Children(parent) {
		if !t.IsLeaf(ch) {
			return false
		}
	}
	return true
}

// State evaluates the pulse at x
func (p Pulse) State(ndims int) func(x [3]float64, u []float64) {
	return func(x [3]float64, u []float64) {
		var r2 float64
		for a := 0; a < ndims; a++ {
			d := x[a] - p.Center[a]
			r2 += d * d
		}
		for v := range u {
			u[v] = 0
		}
		if p.Width == 0 {
			if r2 == 0 {
				u[0] = p.Amplitude
			}
			return
		}
		u[0] = p.Amplitude * math.Exp(-r2/(p.Width*p.Width))
	}
}
