package geometry

// NewPlane builds a width × height plane in the XY plane facing +Z, split into
// segmentsX × segmentsY quads, with position, normal and uv attributes and a
// counter-clockwise triangle index.
//
// Parameters:
//   - width: size along X
//   - height: size along Y
//   - segmentsX: horizontal subdivisions, at least 1
//   - segmentsY: vertical subdivisions, at least 1
//
// Returns:
//   - Geometry: the plane geometry
func NewPlane(width, height float32, segmentsX, segmentsY int) Geometry {
	segmentsX = max(segmentsX, 1)
	segmentsY = max(segmentsY, 1)
	gridX1 := segmentsX + 1
	gridY1 := segmentsY + 1
	segmentW := width / float32(segmentsX)
	segmentH := height / float32(segmentsY)

	positions := make([]float32, 0, gridX1*gridY1*3)
	normals := make([]float32, 0, gridX1*gridY1*3)
	uvs := make([]float32, 0, gridX1*gridY1*2)
	for iy := 0; iy < gridY1; iy++ {
		y := float32(iy)*segmentH - height/2
		for ix := 0; ix < gridX1; ix++ {
			x := float32(ix)*segmentW - width/2
			positions = append(positions, x, -y, 0)
			normals = append(normals, 0, 0, 1)
			uvs = append(uvs, float32(ix)/float32(segmentsX), 1-float32(iy)/float32(segmentsY))
		}
	}

	index := make([]uint32, 0, segmentsX*segmentsY*6)
	for iy := 0; iy < segmentsY; iy++ {
		for ix := 0; ix < segmentsX; ix++ {
			a := uint32(ix + gridX1*iy)
			b := uint32(ix + gridX1*(iy+1))
			c := uint32(ix + 1 + gridX1*(iy+1))
			d := uint32(ix + 1 + gridX1*iy)
			index = append(index, a, b, d, b, c, d)
		}
	}

	g := NewGeometry("Plane")
	// sizes are fixed by construction, errors are impossible here
	_ = g.SetAttribute(AttributePosition, Attribute{Data: positions, ItemSize: 3})
	_ = g.SetAttribute(AttributeNormal, Attribute{Data: normals, ItemSize: 3})
	_ = g.SetAttribute(AttributeUV, Attribute{Data: uvs, ItemSize: 2})
	g.SetIndex(index)
	return g
}
