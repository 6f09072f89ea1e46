package element

import "fmt"

// GeometricTransform maps reference space [-1,1]^d onto an axis-aligned
// cube. The map is affine and identical along every axis, so every metric
// term is a single constant per element.
type GeometricTransform struct {
	J  float64 // Volume Jacobian (h/2)^d
	Rx float64 // dr/dx = 2/h, also ds/dy and dt/dz
}

// SurfaceGeometry holds the face metrics of an axis-aligned cube
type SurfaceGeometry struct {
	// Normals[f] is the unit outward normal of face f = 2*axis+side
	Normals [][3]float64
	// SJ is the surface Jacobian (h/2)^(d-1), the same on every face
	SJ float64
	// FScale = SJ/J scales lifted face terms into the volume
	FScale float64
}

// CubeGeometry returns the metrics of a d-dimensional cube of edge length h
func CubeGeometry(dims Dimensionality, h float64) (GeometricTransform, SurfaceGeometry, error) {
	if dims < D1 || dims > D3 {
		return GeometricTransform{}, SurfaceGeometry{}, fmt.Errorf("unsupported dimensionality %d", dims)
	}
	if h <= 0 {
		return GeometricTransform{}, SurfaceGeometry{}, fmt.Errorf("edge length %g must be positive", h)
	}
	d := int(dims)
	half := 0.5 * h
	gt := GeometricTransform{J: 1, Rx: 1 / half}
	sg := SurfaceGeometry{SJ: 1, Normals: make([][3]float64, 2*d)}
	for a := 0; a < d; a++ {
		gt.J *= half
		if a > 0 {
			sg.SJ *= half
		}
		sg.Normals[2*a][a] = -1
		sg.Normals[2*a+1][a] = 1
	}
	sg.FScale = sg.SJ / gt.J
	return gt, sg, nil
}
