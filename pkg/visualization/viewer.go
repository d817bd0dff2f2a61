// Package visualization renders axis-aligned cross sections of a sampled
// scalar field to grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"sparsevol/internal/models"
	"sparsevol/pkg/volume"
)

// Sampler evaluates the field at a world-space point.
type Sampler interface {
	Sample(p mgl64.Vec3) float64
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(p mgl64.Vec3) float64

// Sample calls f.
func (f SamplerFunc) Sample(p mgl64.Vec3) float64 { return f(p) }

// Options controls image size and encoding.
type Options struct {
	// Resolution is the pixel count along the longer side of a slice
	Resolution int

	// Quality is the JPEG quality from 1 to 100
	Quality int
}

// DefaultOptions returns 256 pixel slices at JPEG quality 90.
func DefaultOptions() Options {
	return Options{Resolution: 256, Quality: 90}
}

// Viewer renders slices through a world-space box. Sample values are mapped
// linearly from [lo, hi] to black..white.
type Viewer struct {
	sampler Sampler
	bound   models.Bound
	lo, hi  float64
	opts    Options
}

// NewViewer creates a viewer over sampler restricted to bound.
func NewViewer(sampler Sampler, bound models.Bound, lo, hi float64, opts Options) (*Viewer, error) {
	if sampler == nil {
		return nil, errors.New("sampler is nil")
	}
	for axis := 0; axis < 3; axis++ {
		if !(bound.Min[axis] <= bound.Max[axis]) {
			return nil, errors.Errorf("invalid bound %v", bound)
		}
	}
	if opts.Resolution < 1 {
		return nil, errors.Errorf("resolution must be positive, got %d", opts.Resolution)
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = DefaultOptions().Quality
	}
	return &Viewer{sampler: sampler, bound: bound, lo: lo, hi: hi, opts: opts}, nil
}

// NewVolumeViewer creates a viewer spanning the active bound and value
// range of vol.
func NewVolumeViewer(vol *volume.Volume, opts Options) (*Viewer, error) {
	if vol == nil || vol.IsEmpty() {
		return nil, errors.New("volume has no active voxels")
	}
	return NewViewer(vol, vol.Bound(), math.Min(vol.Min(), 0), vol.Max(), opts)
}

// axisIndex maps an axis name to its index and the two in-plane axes
// (image columns, image rows).
func axisIndex(axis string) (n, u, v int, err error) {
	switch strings.ToLower(axis) {
	case "x":
		return 0, 1, 2, nil
	case "y":
		return 1, 0, 2, nil
	case "z":
		return 2, 0, 1, nil
	default:
		return 0, 0, 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// imageSize splits the resolution between the two in-plane extents so
// pixels are square.
func (v *Viewer) imageSize(u, w int) (int, int) {
	size := v.bound.Size()
	long := math.Max(size[u], size[w])
	if long == 0 {
		return 1, 1
	}
	px := long / float64(v.opts.Resolution)
	width := int(math.Max(1, math.Round(size[u]/px)))
	height := int(math.Max(1, math.Round(size[w]/px)))
	return width, height
}

func (v *Viewer) gray(value float64) color.Gray16 {
	span := v.hi - v.lo
	if !(span > 0) {
		span = 1
	}
	t := (value - v.lo) / span
	if math.IsNaN(t) {
		t = 0
	}
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(t*65535))))}
}

// ExtractSlice samples the plane perpendicular to axis at the world
// coordinate position. Pixel (0, 0) sits at the minimum corner of the
// bound in the plane.
func (v *Viewer) ExtractSlice(axis string, position float64) (image.Image, error) {
	n, u, w, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	if position < v.bound.Min[n] || position > v.bound.Max[n] {
		return nil, fmt.Errorf("position %v outside [%v, %v] along %s", position, v.bound.Min[n], v.bound.Max[n], axis)
	}

	width, height := v.imageSize(u, w)
	size := v.bound.Size()
	img := image.NewGray16(image.Rect(0, 0, width, height))

	var p mgl64.Vec3
	p[n] = position
	for row := 0; row < height; row++ {
		p[w] = v.bound.Min[w] + (float64(row)+0.5)*size[w]/float64(height)
		for col := 0; col < width; col++ {
			p[u] = v.bound.Min[u] + (float64(col)+0.5)*size[u]/float64(width)
			img.SetGray16(col, row, v.gray(v.sampler.Sample(p)))
		}
	}
	return img, nil
}

// SaveSlice writes img to filename, as PNG when the name ends in .png and
// as JPEG otherwise.
func (v *Viewer) SaveSlice(img image.Image, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: v.opts.Quality})
}

// SaveSliceSequence renders count evenly spaced slices along axis into
// outputDir and returns the file names written. format is "png" or "jpeg".
func (v *Viewer) SaveSliceSequence(axis string, count int, format, outputDir string) ([]string, error) {
	n, _, _, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, fmt.Errorf("slice count must be positive, got %d", count)
	}
	ext := ".jpg"
	if format == "png" {
		ext = ".png"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	lo, hi := v.bound.Min[n], v.bound.Max[n]
	files := make([]string, 0, count)
	for i := 0; i < count; i++ {
		pos := lo + (float64(i)+0.5)*(hi-lo)/float64(count)
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return files, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d%s", strings.ToLower(axis), i, ext))
		if err := v.SaveSlice(img, filename); err != nil {
			return files, err
		}
		files = append(files, filename)
	}
	return files, nil
}
