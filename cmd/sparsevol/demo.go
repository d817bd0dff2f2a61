package main

import (
	"math"

	"sparsevol/internal/models"
	"sparsevol/pkg/grid"
)

// slabThickness is the x extent of the demo slab in voxels.
const slabThickness = 8

// buildDemoGrid makes a density sphere of the given radius centred on the
// index origin and a uniform slab on the +x side, gap empty voxels away.
// A ray along +x through the centre crosses two active regions.
func buildDemoGrid(radius, gap int) *grid.Grid {
	g := grid.New(0)
	g.SetName("density")

	r := int32(radius)
	for z := -r; z <= r; z++ {
		for y := -r; y <= r; y++ {
			for x := -r; x <= r; x++ {
				d := math.Sqrt(float64(x*x + y*y + z*z))
				if d <= float64(radius) {
					g.SetValue(models.Coord{X: x, Y: y, Z: z}, float32(1-d/float64(radius+1)))
				}
			}
		}
	}

	x0 := r + int32(gap) + 1
	g.Fill(models.CoordBBox{
		Min: models.Coord{X: x0, Y: -r, Z: -r},
		Max: models.Coord{X: x0 + slabThickness - 1, Y: r, Z: r},
	}, 0.5)
	return g
}
