package volio

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"sparsevol/pkg/grid"
	"sparsevol/pkg/transform"
)

// readHeader parses the preamble and YAML header from r and returns the
// number of bytes consumed.
func readHeader(r io.Reader) (*Header, int64, error) {
	var pre [12]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, errors.Wrap(ErrBadMagic, "file too short")
		}
		return nil, 0, errors.Wrap(err, "reading preamble")
	}
	if string(pre[:4]) != Magic {
		return nil, 0, ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(pre[4:])
	if version != Version {
		return nil, 0, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}
	size := binary.LittleEndian.Uint32(pre[8:])
	if size > maxHeaderSize {
		return nil, 0, errors.Wrapf(ErrCorrupt, "header length %d", size)
	}

	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, 0, errors.Wrap(ErrCorrupt, "truncated header")
	}
	hdr := &Header{}
	if err := yaml.Unmarshal(raw, hdr); err != nil {
		return nil, 0, errors.Wrap(ErrCorrupt, err.Error())
	}
	hdr.Version = version
	for _, g := range hdr.Grids {
		if g.PayloadSize < 0 {
			return nil, 0, errors.Wrapf(ErrCorrupt, "grid %q has negative payload size", g.Name)
		}
	}
	return hdr, int64(len(pre)) + int64(size), nil
}

// ReadHeader returns the grid listing of the file at path without reading
// any payload.
func ReadHeader(path string) (hdr *Header, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening volume file")
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	hdr, _, err = readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return hdr, nil
}

// ReadGrid reads the scalar grid called name from the file at path along
// with its index-to-world transform.
func ReadGrid(path, name string) (g *grid.Grid, xf *transform.Transform, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening volume file")
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	hdr, start, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", path)
	}
	gh, ok := hdr.Find(name)
	if !ok {
		return nil, nil, errors.Wrapf(ErrGridNotFound, "%q in %s", name, path)
	}
	if !gh.IsScalar() {
		return nil, nil, errors.Wrapf(ErrNotScalar, "%q has type %q", name, gh.Type)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, nil, errors.Wrap(err, "stat volume file")
	}
	off, err := hdr.payloadOffset(name, info.Size()-start)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", path)
	}

	payload := make([]byte, gh.PayloadSize)
	if _, err := f.ReadAt(payload, start+off); err != nil {
		return nil, nil, errors.Wrapf(err, "reading payload of %q", name)
	}
	return decodeGrid(gh, payload)
}

// ReadFirstScalarGrid reads the first float grid of the file at path.
// found is false, with a nil error, when the file is valid but holds no
// float grid.
func ReadFirstScalarGrid(path string) (*grid.Grid, *transform.Transform, bool, error) {
	hdr, err := ReadHeader(path)
	if err != nil {
		return nil, nil, false, err
	}
	gh, ok := hdr.FirstScalar()
	if !ok {
		return nil, nil, false, nil
	}
	g, xf, err := ReadGrid(path, gh.Name)
	if err != nil {
		return nil, nil, false, err
	}
	return g, xf, true, nil
}

func decodeGrid(gh GridHeader, payload []byte) (*grid.Grid, *transform.Transform, error) {
	xf, err := transform.FromRowMajor(gh.Transform)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrCorrupt, "grid %q transform: %v", gh.Name, err)
	}
	data, err := decompress(payload, gh.Compression)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "grid %q", gh.Name)
	}

	g := grid.New(gh.Background)
	g.SetName(gh.Name)
	if err := decodeLeaves(data, g, gh); err != nil {
		return nil, nil, err
	}
	return g, xf, nil
}
