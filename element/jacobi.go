package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiP evaluates the orthonormal Jacobi polynomial P_n^(alpha,beta) at x
func JacobiP(x []float64, alpha, beta float64, n int) []float64 {
	var (
		np     = len(x)
		pm1    = make([]float64, np) // P_{i-1}
		p      = make([]float64, np) // P_i
		gamma0 = Gamma0(alpha, beta)
	)
	for i := range pm1 {
		pm1[i] = 1 / math.Sqrt(gamma0)
	}
	if n == 0 {
		return pm1
	}
	gamma1 := Gamma1(alpha, beta)
	for i := range p {
		p[i] = ((alpha+beta+2)*x[i]/2 + (alpha-beta)/2) / math.Sqrt(gamma1)
	}
	if n == 1 {
		return p
	}

	aold := 2 / (2 + alpha + beta) * math.Sqrt((alpha+1)*(beta+1)/(alpha+beta+3))
	for i := 1; i < n; i++ {
		fi := float64(i)
		h1 := 2*fi + alpha + beta
		anew := 2 / (h1 + 2) * math.Sqrt((fi+1)*(fi+1+alpha+beta)*(fi+1+alpha)*(fi+1+beta)/
			(h1+1)/(h1+3))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2)
		for j := range p {
			next := (-aold*pm1[j] + (x[j]-bnew)*p[j]) / anew
			pm1[j] = p[j]
			p[j] = next
		}
		aold = anew
	}
	return p
}

// GradJacobiP evaluates d/dx of the orthonormal Jacobi polynomial at x
func GradJacobiP(x []float64, alpha, beta float64, n int) []float64 {
	dp := make([]float64, len(x))
	if n == 0 {
		return dp
	}
	p := JacobiP(x, alpha+1, beta+1, n-1)
	scale := math.Sqrt(float64(n) * (float64(n) + alpha + beta + 1))
	for i := range dp {
		dp[i] = scale * p[i]
	}
	return dp
}

// JacobiGQ computes the N+1 point Gauss quadrature for weight
// (1-x)^alpha (1+x)^beta via the Golub-Welsch eigenvalue problem
func JacobiGQ(alpha, beta float64, N int) (x, w []float64, err error) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2)}, []float64{2}, nil
	}
	h1 := make([]float64, N+1)
	for i := range h1 {
		h1[i] = 2*float64(i) + alpha + beta
	}

	diag := make([]float64, N+1)
	for i := range diag {
		diag[i] = (beta*beta - alpha*alpha) / (h1[i] * (h1[i] + 2))
	}
	if alpha+beta < 10*1e-16 {
		diag[0] = 0
	}
	off := make([]float64, N)
	for i := range off {
		ip1 := float64(i + 1)
		off[i] = 2 / (h1[i] + 2) * math.Sqrt(ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/
			(h1[i]+1)/(h1[i]+3))
	}

	jj := mat.NewSymDense(N+1, nil)
	for i := 0; i <= N; i++ {
		jj.SetSym(i, i, diag[i])
		if i < N {
			jj.SetSym(i, i+1, off[i])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(jj, true); !ok {
		return nil, nil, fmt.Errorf("jacobi quadrature: eigen decomposition failed for N=%d", N)
	}
	x = eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	g0 := Gamma0(alpha, beta)
	w = make([]float64, N+1)
	for i := range w {
		v := vecs.At(0, i)
		w[i] = v * v * g0
	}
	return x, w, nil
}

// JacobiGL returns the N+1 Gauss-Lobatto points, the zeros of
// (1-x^2) P'_N^(alpha,beta)(x), in ascending order
func JacobiGL(alpha, beta float64, N int) ([]float64, error) {
	switch N {
	case 0:
		return []float64{0}, nil
	case 1:
		return []float64{-1, 1}, nil
	}
	interior, _, err := JacobiGQ(alpha+1, beta+1, N-2)
	if err != nil {
		return nil, err
	}
	x := make([]float64, N+1)
	x[0], x[N] = -1, 1
	copy(x[1:N], interior)
	return x, nil
}

// Gamma0 is the squared norm of P_0^(alpha,beta) before normalization
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1
	return math.Pow(2, ab1) / ab1 * math.Gamma(alpha+1) * math.Gamma(beta+1) / math.Gamma(ab1)
}

// Gamma1 is the squared norm of P_1^(alpha,beta) before normalization
func Gamma1(alpha, beta float64) float64 {
	return (alpha + 1) * (beta + 1) / (alpha + beta + 3) * Gamma0(alpha, beta)
}

// Vandermonde1D returns V[i][j] = P_j(x_i) for the orthonormal Legendre basis
func Vandermonde1D(N int, x []float64) *mat.Dense {
	v := mat.NewDense(len(x), N+1, nil)
	for j := 0; j <= N; j++ {
		v.SetCol(j, JacobiP(x, 0, 0, j))
	}
	return v
}

// GradVandermonde1D returns Vr[i][j] = P_j'(x_i)
func GradVandermonde1D(N int, x []float64) *mat.Dense {
	vr := mat.NewDense(len(x), N+1, nil)
	for j := 0; j <= N; j++ {
		vr.SetCol(j, GradJacobiP(x, 0, 0, j))
	}
	return vr
}
