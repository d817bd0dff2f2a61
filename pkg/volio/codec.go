package volio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"sparsevol/internal/models"
	"sparsevol/pkg/grid"
)

// encodeLeaves serialises the active leaves of g.
func encodeLeaves(g *grid.Grid) ([]byte, int, uint64) {
	var buf bytes.Buffer
	var leaves int
	var voxels uint64
	var rec [leafRecordSize]byte

	g.ForEachLeaf(func(origin models.Coord, mask grid.Mask512, active []float32) {
		binary.LittleEndian.PutUint32(rec[0:], uint32(origin.X))
		binary.LittleEndian.PutUint32(rec[4:], uint32(origin.Y))
		binary.LittleEndian.PutUint32(rec[8:], uint32(origin.Z))
		for i, w := range mask {
			binary.LittleEndian.PutUint64(rec[12+8*i:], w)
		}
		buf.Write(rec[:])

		var v [4]byte
		for _, f := range active {
			binary.LittleEndian.PutUint32(v[:], math.Float32bits(f))
			buf.Write(v[:])
		}
		leaves++
		voxels += uint64(len(active))
	})
	return buf.Bytes(), leaves, voxels
}

// decodeLeaves inserts the leaves in data into g and checks the counts
// recorded in the header.
func decodeLeaves(data []byte, g *grid.Grid, hdr GridHeader) error {
	r := bytes.NewReader(data)
	var rec [leafRecordSize]byte
	var leaves int
	var voxels uint64
	values := make([]float32, 0, 512)
	raw := make([]byte, 0, 512*4)

	for r.Len() > 0 {
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			return errors.Wrapf(ErrCorrupt, "leaf %d of grid %q: truncated record", leaves, hdr.Name)
		}
		origin := models.Coord{
			X: int32(binary.LittleEndian.Uint32(rec[0:])),
			Y: int32(binary.LittleEndian.Uint32(rec[4:])),
			Z: int32(binary.LittleEndian.Uint32(rec[8:])),
		}
		var mask grid.Mask512
		for i := range mask {
			mask[i] = binary.LittleEndian.Uint64(rec[12+8*i:])
		}

		n := mask.CountOn()
		raw = raw[:n*4]
		if _, err := io.ReadFull(r, raw); err != nil {
			return errors.Wrapf(ErrCorrupt, "leaf %d of grid %q: truncated values", leaves, hdr.Name)
		}
		values = values[:n]
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}

		if err := g.SetLeaf(origin, mask, values); err != nil {
			return errors.Wrap(ErrCorrupt, err.Error())
		}
		leaves++
		voxels += uint64(n)
	}

	if leaves != hdr.LeafCount || voxels != hdr.VoxelCount {
		return errors.Wrapf(ErrCorrupt, "grid %q: header lists %d leaves and %d voxels, payload has %d and %d",
			hdr.Name, hdr.LeafCount, hdr.VoxelCount, leaves, voxels)
	}
	return nil
}

func compress(data []byte, compression string) ([]byte, error) {
	switch compression {
	case "", CompressionNone:
		return data, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd encoder")
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	default:
		return nil, errors.Errorf("unknown compression %q", compression)
	}
}

func decompress(data []byte, compression string) ([]byte, error) {
	switch compression {
	case "", CompressionNone:
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd decoder")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrCorrupt, "unknown compression %q", compression)
	}
}
