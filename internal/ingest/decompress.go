// Package ingest reads ClinVar tab-delimited releases and user target lists
// into domain records.
package ingest

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// DataType is the container format of an input file.
type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

func (d DataType) String() string {
	switch d {
	case DataTypeNoCompression:
		return "plain"
	case DataTypeGzip:
		return "gzip"
	case DataTypeZip:
		return "zip"
	case DataTypeXZ:
		return "xz"
	case DataTypeZ:
		return "zlib"
	case DataTypeBZip2:
		return "bzip2"
	}
	return "invalid"
}

var byteCodeSigs = []struct {
	dt  DataType
	sig []byte
}{
	{DataTypeGzip, []byte{0x1f, 0x8b, 0x08}},
	{DataTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{DataTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{DataTypeZ, []byte{0x78}},
	{DataTypeBZip2, []byte{0x42, 0x5a, 0x68}},
}

// DetectDataType reports the container format from the leading bytes of a
// stream. Short or empty input is treated as uncompressed.
func DetectDataType(head []byte) DataType {
	for _, s := range byteCodeSigs {
		if bytes.HasPrefix(head, s.sig) {
			if s.dt == DataTypeZ && !validZlibHeader(head) {
				continue
			}
			return s.dt
		}
	}
	return DataTypeNoCompression
}

// validZlibHeader checks the CMF/FLG checksum so that text starting with 'x'
// is not mistaken for a zlib stream.
func validZlibHeader(head []byte) bool {
	if len(head) < 2 {
		return false
	}
	return (uint16(head[0])<<8|uint16(head[1]))%31 == 0
}

// OpenMaybeCompressed opens path and transparently decompresses gzip, zip,
// xz, zlib or bzip2 content. Anything else is returned as plain text.
func OpenMaybeCompressed(path string) (io.ReadCloser, DataType, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, DataTypeInvalid, fmt.Errorf("open %s: %w", path, err)
	}

	head := make([]byte, 6)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, DataTypeInvalid, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, DataTypeInvalid, fmt.Errorf("seek %s: %w", path, err)
	}

	dt := DetectDataType(head[:n])
	r, err := decompressor(dt, f)
	if err != nil {
		f.Close()
		return nil, DataTypeInvalid, fmt.Errorf("open %s stream in %s: %w", dt, path, err)
	}
	return r, dt, nil
}

func decompressor(dt DataType, f *os.File) (io.ReadCloser, error) {
	switch dt {
	case DataTypeGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		return &stackedReadCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case DataTypeZip:
		zr := zipstream.NewReader(f)
		if _, err := zr.Next(); err != nil {
			return nil, err
		}
		return &stackedReadCloser{Reader: zr, closers: []io.Closer{f}}, nil
	case DataTypeXZ:
		xr, err := xz.NewReader(f, 0)
		if err != nil {
			return nil, err
		}
		return &stackedReadCloser{Reader: xr, closers: []io.Closer{f}}, nil
	case DataTypeZ:
		zr, err := zlib.NewReader(f)
		if err != nil {
			return nil, err
		}
		return &stackedReadCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case DataTypeBZip2:
		return &stackedReadCloser{Reader: bzip2.NewReader(f), closers: []io.Closer{f}}, nil
	}
	return f, nil
}

// stackedReadCloser closes the decompressor and the file underneath it.
type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReadCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
