// Package volio reads and writes .svol files, a container for sparse
// scalar grids.
//
// A file starts with the magic "SVOL", a little-endian uint32 format
// version and a little-endian uint32 header length, followed by a YAML
// header describing every grid and then the grid payloads in header order.
// A scalar payload is a sequence of leaves, each stored as its origin
// (3 x int32), its active mask (8 x uint64) and the values of its active
// voxels (popcount x float32) in ascending voxel order. The payload may be
// zstd compressed as a whole.
package volio

import (
	"github.com/pkg/errors"
)

const (
	// Magic opens every .svol file.
	Magic = "SVOL"

	// Version is the format version written by this package.
	Version uint32 = 1

	// TypeFloat marks a grid of 32-bit float values, the only type read back
	// into a grid.
	TypeFloat = "float"

	// ClassFogVolume and ClassLevelSet are informational grid classes.
	ClassFogVolume = "fog_volume"
	ClassLevelSet  = "level_set"

	CompressionNone = "none"
	CompressionZstd = "zstd"

	// maxHeaderSize bounds the YAML header so a corrupt length cannot force
	// a huge allocation.
	maxHeaderSize = 16 << 20

	leafRecordSize = 3*4 + 8*8
)

var (
	ErrBadMagic           = errors.New("not a sparse volume file")
	ErrUnsupportedVersion = errors.New("unsupported sparse volume version")
	ErrCorrupt            = errors.New("corrupt sparse volume file")
	ErrGridNotFound       = errors.New("grid not found")
	ErrNotScalar          = errors.New("grid is not a scalar float grid")
)

// GridHeader describes one grid in a file.
type GridHeader struct {
	Name        string    `yaml:"name" json:"name"`
	Type        string    `yaml:"type" json:"type"`
	Class       string    `yaml:"class,omitempty" json:"class,omitempty"`
	Background  float32   `yaml:"background" json:"background"`
	Transform   []float64 `yaml:"transform,flow" json:"transform"`
	Compression string    `yaml:"compression" json:"compression"`
	LeafCount   int       `yaml:"leafCount" json:"leafCount"`
	VoxelCount  uint64    `yaml:"voxelCount" json:"voxelCount"`
	PayloadSize int64     `yaml:"payloadSize" json:"payloadSize"`
}

// IsScalar reports whether the grid holds float values.
func (h GridHeader) IsScalar() bool {
	return h.Type == TypeFloat
}

// Header lists the grids of a file in payload order.
type Header struct {
	Version uint32       `yaml:"-"`
	Grids   []GridHeader `yaml:"grids"`
}

// Find returns the header of the grid called name.
func (h *Header) Find(name string) (GridHeader, bool) {
	for _, g := range h.Grids {
		if g.Name == name {
			return g, true
		}
	}
	return GridHeader{}, false
}

// FirstScalar returns the first float grid in file order.
func (h *Header) FirstScalar() (GridHeader, bool) {
	for _, g := range h.Grids {
		if g.IsScalar() {
			return g, true
		}
	}
	return GridHeader{}, false
}

// payloadOffset is the byte offset of the named grid's payload relative to
// the end of the header. Every payload up to and including the named one
// must fit in the limit bytes that follow the header.
func (h *Header) payloadOffset(name string, limit int64) (int64, error) {
	var off int64
	for _, g := range h.Grids {
		if g.PayloadSize > limit-off {
			return 0, errors.Wrapf(ErrCorrupt, "payload of %q runs past end of file", g.Name)
		}
		if g.Name == name {
			return off, nil
		}
		off += g.PayloadSize
	}
	return 0, errors.Wrapf(ErrGridNotFound, "%q", name)
}
