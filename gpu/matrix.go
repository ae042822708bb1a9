package gpu

// Matrix4 is a 4x4 float32 matrix in column-major order, the layout WGSL
// expects for a mat4x4<f32> uniform. The render core only ever composes 2D
// affine transforms into it, but the full matrix is carried so the blit
// shader stays a plain matrix multiply.
type Matrix4 [16]float32

// Identity returns the identity matrix.
func Identity() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate2D returns a matrix translating by (x, y) in normalized device
// coordinates.
func Translate2D(x, y float32) Matrix4 {
	m := Identity()
	m[12] = x
	m[13] = y
	return m
}

// Scale2D returns a matrix scaling by (sx, sy).
func Scale2D(sx, sy float32) Matrix4 {
	m := Identity()
	m[0] = sx
	m[5] = sy
	return m
}

// Mul returns m * o (column-major, o applied first).
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	var r Matrix4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[col*4+k]
			}
			r[col*4+row] = sum
		}
	}
	return r
}

// IsIdentity reports whether m is exactly the identity matrix.
func (m Matrix4) IsIdentity() bool {
	return m == Identity()
}

// apply2D maps a 2D point through the matrix, ignoring z and assuming w
// stays 1. Used by the CPU stub to mirror what the vertex shader does.
func (m Matrix4) apply2D(x, y float32) (float32, float32) {
	return m[0]*x + m[4]*y + m[12], m[1]*x + m[5]*y + m[13]
}

// invertAffine2D inverts the 2D affine part of the matrix. Returns false
// when the 2x2 block is singular.
func (m Matrix4) invertAffine2D() (Matrix4, bool) {
	a, b := m[0], m[4]
	c, d := m[1], m[5]
	det := a*d - b*c
	if det == 0 {
		return Matrix4{}, false
	}
	inv := Identity()
	inv[0] = d / det
	inv[4] = -b / det
	inv[1] = -c / det
	inv[5] = a / det
	tx, ty := m[12], m[13]
	inv[12] = -(inv[0]*tx + inv[4]*ty)
	inv[13] = -(inv[1]*tx + inv[5]*ty)
	return inv, true
}
