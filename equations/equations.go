// Package equations holds the conservation laws the container layer sizes
// its storage for. Only the capabilities the surface coupling needs are
// exposed: variable naming, the physical flux along an axis and a wave
// speed bound for the local Lax-Friedrichs flux.
package equations

import (
	"fmt"
	"math"
)

// Equation is a system of hyperbolic conservation laws
//
//	∂u/∂t + Σ_a ∂f_a(u)/∂x_a = 0
type Equation interface {
	NVariables() int
	VariableNames() []string
	// Flux writes f_orientation(u) into f, len(f) == NVariables()
	Flux(u []float64, orientation int, f []float64)
	// MaxAbsSpeed bounds the wave speed between two states along orientation
	MaxAbsSpeed(uL, uR []float64, orientation int) float64
}

// Config selects an equation by name
type Config struct {
	Name     string     `yaml:"name" validate:"oneof=advection burgers"`
	Velocity [3]float64 `yaml:"velocity"`
}

// FromConfig builds the configured equation
func FromConfig(cfg Config) (Equation, error) {
	switch cfg.Name {
	case "advection":
		return &LinearScalarAdvection{Velocity: cfg.Velocity}, nil
	case "burgers":
		return InviscidBurgers{}, nil
	default:
		return nil, fmt.Errorf("unknown equation %q", cfg.Name)
	}
}

// LinearScalarAdvection transports u with a constant velocity, f_a = c_a u
type LinearScalarAdvection struct {
	Velocity [3]float64
}

func (e *LinearScalarAdvection) NVariables() int         { return 1 }
func (e *LinearScalarAdvection) VariableNames() []string { return []string{"scalar"} }

func (e *LinearScalarAdvection) Flux(u []float64, orientation int, f []float64) {
	f[0] = e.Velocity[orientation] * u[0]
}

func (e *LinearScalarAdvection) MaxAbsSpeed(_, _ []float64, orientation int) float64 {
	return math.Abs(e.Velocity[orientation])
}

// InviscidBurgers is the scalar Burgers equation, f_a = u²/2 along every axis
type InviscidBurgers struct{}

func (InviscidBurgers) NVariables() int         { return 1 }
func (InviscidBurgers) VariableNames() []string { return []string{"scalar"} }

func (InviscidBurgers) Flux(u []float64, _ int, f []float64) {
	f[0] = 0.5 * u[0] * u[0]
}

func (InviscidBurgers) MaxAbsSpeed(uL, uR []float64, _ int) float64 {
	return math.Max(math.Abs(uL[0]), math.Abs(uR[0]))
}

// LaxFriedrichs evaluates the local Lax-Friedrichs (Rusanov) flux
//
//	F* = ½ (f(uL) + f(uR)) - ½ λ (uR - uL),  λ = MaxAbsSpeed(uL, uR)
//
// into out. fL and fR are scratch of length NVariables().
func LaxFriedrichs(eq Equation, uL, uR []float64, orientation int, fL, fR, out []float64) {
	eq.Flux(uL, orientation, fL)
	eq.Flux(uR, orientation, fR)
	lambda := eq.MaxAbsSpeed(uL, uR, orientation)
	for v := range out {
		out[v] = 0.5*(fL[v]+fR[v]) - 0.5*lambda*(uR[v]-uL[v])
	}
}
