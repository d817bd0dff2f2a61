package interpolation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"sparsevol/internal/models"
	"sparsevol/pkg/grid"
	"sparsevol/pkg/transform"
)

// linearGrid fills a box with f(x,y,z) = x + 2y + 3z, which trilinear
// interpolation reproduces exactly inside the box.
func linearGrid() *grid.Grid {
	g := grid.New(0)
	for x := int32(0); x < 6; x++ {
		for y := int32(0); y < 6; y++ {
			for z := int32(0); z < 6; z++ {
				g.SetValue(models.Coord{X: x, Y: y, Z: z}, float32(x+2*y+3*z))
			}
		}
	}
	return g
}

func TestTrilinearReproducesLinearField(t *testing.T) {
	s := NewTrilinear(linearGrid(), transform.Identity())

	points := []mgl64.Vec3{{0, 0, 0}, {1.5, 2.25, 3.75}, {4.99, 0.01, 2.5}, {3, 3, 3}}
	for _, p := range points {
		want := p[0] + 2*p[1] + 3*p[2]
		require.InDelta(t, want, s.Sample(p), 1e-4, "sample at %v", p)
	}
}

func TestTrilinearWorldTransform(t *testing.T) {
	xf, err := transform.NewScaleTranslate(mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{10, 0, 0})
	require.NoError(t, err)
	s := NewTrilinear(linearGrid(), xf)

	// World (11, 1, 0.5) is index (2, 2, 1).
	require.InDelta(t, 2+4+3, s.Sample(mgl64.Vec3{11, 1, 0.5}), 1e-5)
}

func TestTrilinearOutsideAndInactive(t *testing.T) {
	g := grid.New(0.25)
	g.SetValue(models.Coord{X: 0, Y: 0, Z: 0}, 1)
	s := NewTrilinear(g, transform.Identity())

	require.InDelta(t, 1, s.Sample(mgl64.Vec3{0, 0, 0}), 1e-9)
	// Halfway towards an inactive neighbour blends with the background.
	require.InDelta(t, 0.625, s.Sample(mgl64.Vec3{0.5, 0, 0}), 1e-9)
	require.InDelta(t, 0.25, s.Sample(mgl64.Vec3{50, 50, 50}), 1e-9)

	require.InDelta(t, 0.25, s.Sample(mgl64.Vec3{math.NaN(), 0, 0}), 1e-9)
	require.InDelta(t, 0.25, s.Sample(mgl64.Vec3{math.Inf(1), 0, 0}), 1e-9)
	require.InDelta(t, 0.25, s.Sample(mgl64.Vec3{-1e12, 0, 0}), 1e-9)
}
