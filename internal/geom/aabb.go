// Package geom provides the axis-aligned bounding volume primitives
// shared by the octree and streaming packages.
package geom

// Vector3 is a 3-component coordinate or displacement.
type Vector3 struct {
	X, Y, Z float64
}

// Add returns the componentwise sum of v and o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns the componentwise difference v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// AABB is an axis-aligned bounding box with inclusive corners.
type AABB struct {
	Min, Max Vector3
}

// NewAABB builds an AABB from two corners, normalising so Min is the
// componentwise minimum regardless of the order the corners are given in.
func NewAABB(a, b Vector3) AABB {
	return AABB{
		Min: Vector3{min(a.X, b.X), min(a.Y, b.Y), min(a.Z, b.Z)},
		Max: Vector3{max(a.X, b.X), max(a.Y, b.Y), max(a.Z, b.Z)},
	}
}

// NewAABBFromOrigin builds an AABB from an origin and a size. A negative
// component in size is accepted: the box is normalised so Min <= Max.
func NewAABBFromOrigin(origin, size Vector3) AABB {
	return NewAABB(origin, origin.Add(size))
}

// Size returns the extent of the box on each axis.
func (b AABB) Size() Vector3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vector3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Equal reports whether b and o have identical corners.
func (b AABB) Equal(o AABB) bool {
	return b.Min == o.Min && b.Max == o.Max
}

// ContainsPoint reports whether p lies within b, corners inclusive.
func (b AABB) ContainsPoint(p Vector3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Contains reports whether b fully encloses o.
func (b AABB) Contains(o AABB) bool {
	return b.Min.X <= o.Min.X && o.Max.X <= b.Max.X &&
		b.Min.Y <= o.Min.Y && o.Max.Y <= b.Max.Y &&
		b.Min.Z <= o.Min.Z && o.Max.Z <= b.Max.Z
}

// Overlaps reports whether b and o share at least one point, using closed
// intervals on every axis: two boxes sharing a face do overlap.
func (b AABB) Overlaps(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// Octants returns the 8 child boxes obtained by halving b on every axis.
// Index bit 0 selects X, bit 1 selects Y, bit 2 selects Z: octant i takes
// the upper half on an axis wherever the corresponding bit of i is set.
func (b AABB) Octants() [8]AABB {
	h := b.Size().Scale(0.5)
	var out [8]AABB
	for i := 0; i < 8; i++ {
		offset := Vector3{}
		if i&1 != 0 {
			offset.X = h.X
		}
		if i&2 != 0 {
			offset.Y = h.Y
		}
		if i&4 != 0 {
			offset.Z = h.Z
		}
		min := b.Min.Add(offset)
		out[i] = AABB{Min: min, Max: min.Add(h)}
	}
	return out
}
