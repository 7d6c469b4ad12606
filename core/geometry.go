package core

import "math"

// Vec3 is a point or direction in the road network's frame. X and Y span
// the horizontal plane and Z points up; all components share one linear
// unit (metres in recorded networks).
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Normalize returns the unit vector along v. The zero vector is returned
// unchanged.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return Vec3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

// Cross2D returns the Z component of v × other, i.e. the cross product of
// the projections onto the horizontal XY plane. Positive means other is
// rotated counter-clockwise from v when viewed from above.
func (v Vec3) Cross2D(other Vec3) float64 {
	return v.X*other.Y - v.Y*other.X
}

func (v Vec3) isFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// projectOntoSegment returns the clamped parameter t in [0,1] of the point
// on segment a→b closest to p, together with that point.
func projectOntoSegment(p, a, b Vec3) (float64, Vec3) {
	ab := b.Sub(a)
	denom := ab.Dot(ab)
	if denom == 0 {
		return 0, a
	}
	t := p.Sub(a).Dot(ab) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t, a.Add(ab.Scale(t))
}

// SegmentDistance returns the distance from p to the closed segment a→b.
func SegmentDistance(p, a, b Vec3) float64 {
	_, closest := projectOntoSegment(p, a, b)
	return p.DistanceTo(closest)
}

// polylineLength sums the distances between consecutive points.
func polylineLength(points []Vec3) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += points[i-1].DistanceTo(points[i])
	}
	return total
}

// polylineProjection describes where a point lands on a polyline.
type polylineProjection struct {
	Segment  int     // index i of the segment points[i]→points[i+1]
	T        float64 // clamped parameter along that segment
	Point    Vec3    // the projected point
	Offset   float64 // cumulative distance along the polyline to Point
	Distance float64 // distance from the query point to Point
}

// projectOntoPolyline finds the nearest segment of points to p and the
// cumulative distance along the polyline up to the projection. A single
// point polyline projects onto that point.
func projectOntoPolyline(p Vec3, points []Vec3) polylineProjection {
	best := polylineProjection{Distance: math.Inf(1)}
	if len(points) == 0 {
		return best
	}
	if len(points) == 1 {
		return polylineProjection{Point: points[0], Distance: p.DistanceTo(points[0])}
	}

	walked := 0.0
	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		t, closest := projectOntoSegment(p, a, b)
		if d := p.DistanceTo(closest); d < best.Distance {
			best = polylineProjection{
				Segment:  i,
				T:        t,
				Point:    closest,
				Offset:   walked + a.DistanceTo(closest),
				Distance: d,
			}
		}
		walked += a.DistanceTo(b)
	}
	return best
}
