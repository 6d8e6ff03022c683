package phantom

import (
	"fmt"
	"math"
	"strings"

	"github.com/mrsinham/dvhgrab/internal/rt"
)

// Shape kinds.
const (
	ShapeBox      = "box"
	ShapeSphere   = "sphere"
	ShapeCylinder = "cylinder"
)

// circleSegments is the polygon resolution of round contours.
const circleSegments = 64

// shape is a solid that can be contoured on axial planes.
type shape interface {
	// Contains reports whether the point lies inside the solid.
	Contains(x, y, z float64) bool
	// Contour returns the closed polygon of the solid on plane z, or nil.
	Contour(z float64) []rt.Point
}

func (s StructureSpec) shape() (shape, error) {
	switch strings.ToLower(s.Shape) {
	case ShapeBox:
		if s.Size[0] <= 0 || s.Size[1] <= 0 || s.Size[2] <= 0 {
			return nil, fmt.Errorf("box size must be positive")
		}
		return box{center: s.Center, half: [3]float64{s.Size[0] / 2, s.Size[1] / 2, s.Size[2] / 2}}, nil
	case ShapeSphere:
		if s.Radius <= 0 {
			return nil, fmt.Errorf("sphere radius must be positive")
		}
		return sphere{center: s.Center, radius: s.Radius}, nil
	case ShapeCylinder:
		if s.Radius <= 0 || s.Size[2] <= 0 {
			return nil, fmt.Errorf("cylinder radius and height must be positive")
		}
		return cylinder{center: s.Center, radius: s.Radius, halfHeight: s.Size[2] / 2}, nil
	default:
		return nil, fmt.Errorf("unknown shape %q (valid: box, sphere, cylinder)", s.Shape)
	}
}

// withinSlab reports whether z lies in [c-h, c+h], tolerating rounding.
func withinSlab(z, c, h float64) bool {
	return math.Abs(z-c) <= h+1e-6
}

type box struct {
	center [3]float64
	half   [3]float64
}

func (b box) Contains(x, y, z float64) bool {
	return math.Abs(x-b.center[0]) < b.half[0] &&
		math.Abs(y-b.center[1]) < b.half[1] &&
		withinSlab(z, b.center[2], b.half[2])
}

func (b box) Contour(z float64) []rt.Point {
	if !withinSlab(z, b.center[2], b.half[2]) {
		return nil
	}
	x0, x1 := b.center[0]-b.half[0], b.center[0]+b.half[0]
	y0, y1 := b.center[1]-b.half[1], b.center[1]+b.half[1]
	return []rt.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

type sphere struct {
	center [3]float64
	radius float64
}

func (s sphere) Contains(x, y, z float64) bool {
	dx, dy, dz := x-s.center[0], y-s.center[1], z-s.center[2]
	return dx*dx+dy*dy+dz*dz < s.radius*s.radius
}

func (s sphere) Contour(z float64) []rt.Point {
	dz := z - s.center[2]
	if math.Abs(dz) >= s.radius {
		return nil
	}
	return circle(s.center[0], s.center[1], math.Sqrt(s.radius*s.radius-dz*dz))
}

type cylinder struct {
	center     [3]float64
	radius     float64
	halfHeight float64
}

func (c cylinder) Contains(x, y, z float64) bool {
	dx, dy := x-c.center[0], y-c.center[1]
	return dx*dx+dy*dy < c.radius*c.radius && withinSlab(z, c.center[2], c.halfHeight)
}

func (c cylinder) Contour(z float64) []rt.Point {
	if !withinSlab(z, c.center[2], c.halfHeight) {
		return nil
	}
	return circle(c.center[0], c.center[1], c.radius)
}

func circle(cx, cy, r float64) []rt.Point {
	pts := make([]rt.Point, circleSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = rt.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}
