package plane

import "math"

// Vec3 is a 3-component float32 vector.
type Vec3 [3]float32

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns s * v.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{s * v[0], s * v[1], s * v[2]}
}

// Dot returns v ⋅ w.
func (v Vec3) Dot(w Vec3) float32 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns v × w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Length returns |v|.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns v scaled to unit length, or the zero vector unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Transform is a row-major 4x4 float32 matrix mapping plane-local
// coordinates into the world frame. Element (row i, col j) is at [i*4+j].
type Transform [16]float32

// IdentityTransform returns the identity matrix.
func IdentityTransform() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// TranslationTransform returns a pure translation by (x, y, z).
func TranslationTransform(x, y, z float32) Transform {
	t := IdentityTransform()
	t[3], t[7], t[11] = x, y, z
	return t
}

// Apply transforms a point (w = 1).
func (t Transform) Apply(v Vec3) Vec3 {
	return Vec3{
		t[0]*v[0] + t[1]*v[1] + t[2]*v[2] + t[3],
		t[4]*v[0] + t[5]*v[1] + t[6]*v[2] + t[7],
		t[8]*v[0] + t[9]*v[1] + t[10]*v[2] + t[11],
	}
}

// ApplyDirection transforms a direction (w = 0), ignoring translation.
func (t Transform) ApplyDirection(v Vec3) Vec3 {
	return Vec3{
		t[0]*v[0] + t[1]*v[1] + t[2]*v[2],
		t[4]*v[0] + t[5]*v[1] + t[6]*v[2],
		t[8]*v[0] + t[9]*v[1] + t[10]*v[2],
	}
}

// Translation returns the matrix translation column.
func (t Transform) Translation() Vec3 {
	return Vec3{t[3], t[7], t[11]}
}

// Mul returns t ⋅ u.
func (t Transform) Mul(u Transform) Transform {
	var out Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += t[i*4+k] * u[k*4+j]
			}
			out[i*4+j] = sum
		}
	}
	return out
}
