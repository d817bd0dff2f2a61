package volio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"sparsevol/pkg/grid"
	"sparsevol/pkg/transform"
)

// Entry is one grid to be written.
type Entry struct {
	Header GridHeader

	grid      *grid.Grid
	transform *transform.Transform
	raw       []byte
}

// ScalarEntry prepares a float grid for writing. compression is
// CompressionNone or CompressionZstd; class is informational.
func ScalarEntry(g *grid.Grid, xf *transform.Transform, class, compression string) Entry {
	return Entry{
		Header: GridHeader{
			Name:        g.Name(),
			Type:        TypeFloat,
			Class:       class,
			Background:  g.Background(),
			Compression: compression,
		},
		grid:      g,
		transform: xf,
	}
}

// RawEntry prepares a grid of another value type whose payload is stored
// verbatim. Readers list it in the header and otherwise skip it.
func RawEntry(name, typ string, xf *transform.Transform, payload []byte) Entry {
	return Entry{
		Header: GridHeader{
			Name:        name,
			Type:        typ,
			Compression: CompressionNone,
		},
		transform: xf,
		raw:       payload,
	}
}

// Write encodes entries as an .svol stream.
func Write(w io.Writer, entries ...Entry) error {
	hdr := Header{Version: Version}
	payloads := make([][]byte, 0, len(entries))
	names := make(map[string]bool, len(entries))

	for _, e := range entries {
		gh := e.Header
		if gh.Name == "" {
			return errors.New("grid name must not be empty")
		}
		if names[gh.Name] {
			return errors.Errorf("duplicate grid name %q", gh.Name)
		}
		names[gh.Name] = true

		xf := e.transform
		if xf == nil {
			xf = transform.Identity()
		}
		gh.Transform = xf.RowMajor()

		var payload []byte
		if e.grid != nil {
			data, leaves, voxels := encodeLeaves(e.grid)
			var err error
			if payload, err = compress(data, gh.Compression); err != nil {
				return errors.Wrapf(err, "grid %q", gh.Name)
			}
			gh.LeafCount = leaves
			gh.VoxelCount = voxels
		} else {
			payload = e.raw
		}
		if gh.Compression == "" {
			gh.Compression = CompressionNone
		}
		gh.PayloadSize = int64(len(payload))

		hdr.Grids = append(hdr.Grids, gh)
		payloads = append(payloads, payload)
	}

	var yamlBuf bytes.Buffer
	enc := yaml.NewEncoder(&yamlBuf)
	enc.SetIndent(2)
	if err := enc.Encode(&hdr); err != nil {
		return errors.Wrap(err, "encoding header")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encoding header")
	}

	var pre [12]byte
	copy(pre[:4], Magic)
	binary.LittleEndian.PutUint32(pre[4:], Version)
	binary.LittleEndian.PutUint32(pre[8:], uint32(yamlBuf.Len()))
	if _, err := w.Write(pre[:]); err != nil {
		return errors.Wrap(err, "writing preamble")
	}
	if _, err := w.Write(yamlBuf.Bytes()); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, p := range payloads {
		if _, err := w.Write(p); err != nil {
			return errors.Wrapf(err, "writing payload of %q", hdr.Grids[i].Name)
		}
	}
	return nil
}

// WriteFile writes entries to a new file at path.
func WriteFile(path string, entries ...Entry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating volume file")
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	bw := bufio.NewWriter(f)
	if err := Write(bw, entries...); err != nil {
		return err
	}
	return errors.Wrap(bw.Flush(), "flushing volume file")
}
