// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package spacefile reads and writes a Space as a single compressed,
// self-describing blob: a small header, the ordered axis records, and the
// photons/contributions arrays, each checksummed. Writes are atomic (write
// to a temporary sibling path, then rename); reads tolerate the legacy
// header variant emitted by earlier binoculars versions.
package spacefile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/blainsmith/seahash"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/internal/berrors"
	"github.com/esrf-id03/binoculars/space"
)

func init() {
	recordiozstd.Init()
}

const (
	magicCurrent   = "BNSP"
	versionCurrent = byte(1)

	// magicLegacy identifies the format emitted before binoculars carried
	// per-block checksums. Writers never produce it; ReadSpace still
	// understands it.
	magicLegacy   = "IVXO"
	versionLegacy = byte(0)
)

// WriteAtomic serializes s into a single recordio-framed, zstd-compressed
// record at path. It writes to a temporary sibling file first and renames
// it into place, so a reader never observes a partially written file.
func WriteAtomic(ctx context.Context, path string, s *space.Space) (err error) {
	var buf bytes.Buffer
	if err := encodeCurrent(&buf, s); err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int63()))
	out, err := file.Create(ctx, tmp)
	if err != nil {
		return berrors.E("spacefile.WriteAtomic", berrors.IOError, err)
	}
	w := bufio.NewWriter(out.Writer(ctx))
	rio := recordio.NewWriter(w, recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	rio.Append(buf.Bytes())
	if err := rio.Finish(); err != nil {
		file.CloseAndReport(ctx, out, &err)
		return berrors.E("spacefile.WriteAtomic", berrors.IOError, err)
	}
	if err := w.Flush(); err != nil {
		file.CloseAndReport(ctx, out, &err)
		return berrors.E("spacefile.WriteAtomic", berrors.IOError, err)
	}
	if err := out.Close(ctx); err != nil {
		return berrors.E("spacefile.WriteAtomic", berrors.IOError, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return berrors.E("spacefile.WriteAtomic", berrors.IOError, err)
	}
	return nil
}

// ReadSpace reads a Space previously written by WriteAtomic (or the legacy
// format it superseded) from path.
func ReadSpace(ctx context.Context, path string) (*space.Space, error) {
	raw, err := readRecord(ctx, path)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// ReadAxesOnly reads just the axis records of the Space stored at path,
// without allocating or populating its photons/contributions arrays —
// useful for planning (e.g. auto-discovering target axes) without paying
// for the full array decode.
func ReadAxesOnly(ctx context.Context, path string) ([]axis.Axis, error) {
	raw, err := readRecord(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeAxesOnly(raw)
}

func readRecord(ctx context.Context, path string) (raw []byte, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, berrors.E("spacefile.ReadSpace", berrors.IOError, err)
	}
	defer file.CloseAndReport(ctx, in, &err)
	rio := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	defer rio.Finish() // nolint: errcheck
	if !rio.Scan() {
		if rio.Err() != nil {
			return nil, berrors.E("spacefile.ReadSpace", berrors.FormatError, rio.Err())
		}
		return nil, berrors.E("spacefile.ReadSpace", berrors.FormatError, "empty space file")
	}
	raw, ok := rio.Get().([]byte)
	if !ok {
		return nil, berrors.E("spacefile.ReadSpace", berrors.FormatError, "unexpected record type")
	}
	return raw, nil
}

func encodeCurrent(buf *bytes.Buffer, s *space.Space) error {
	buf.WriteString(magicCurrent)
	buf.WriteByte(versionCurrent)
	writeAxes(buf, s.Axes)
	writeShape(buf, s.Shape())
	writeChecksummedFloat64s(buf, s.Photons)
	writeChecksummedUint32s(buf, s.Contributions)
	return nil
}

func writeAxes(buf *bytes.Buffer, axes []axis.Axis) {
	writeUint32(buf, uint32(len(axes)))
	for _, a := range axes {
		writeString(buf, a.Label)
		writeFloat64(buf, a.Min)
		writeFloat64(buf, a.Max)
		writeFloat64(buf, a.Res)
	}
}

func writeShape(buf *bytes.Buffer, shape []int) {
	writeUint32(buf, uint32(len(shape)))
	for _, l := range shape {
		writeUint32(buf, uint32(l))
	}
}

func writeChecksummedFloat64s(buf *bytes.Buffer, vals []float64) {
	raw := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	writeUint64(buf, uint64(len(raw)))
	writeUint64(buf, seahash.Sum64(raw))
	buf.Write(raw)
}

func writeChecksummedUint32s(buf *bytes.Buffer, vals []uint32) {
	raw := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(raw[i*4:], v)
	}
	writeUint64(buf, uint64(len(raw)))
	writeUint64(buf, seahash.Sum64(raw))
	buf.Write(raw)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	writeUint64(buf, math.Float64bits(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func decode(raw []byte) (*space.Space, error) {
	r := bytes.NewReader(raw)
	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil {
		return nil, berrors.E("spacefile.decode", berrors.FormatError, "truncated header")
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, berrors.E("spacefile.decode", berrors.FormatError, "truncated header")
	}
	switch {
	case string(magic) == magicCurrent && version == versionCurrent:
		return decodeCurrentBody(r)
	case string(magic) == magicLegacy && version == versionLegacy:
		return decodeLegacyBody(r)
	default:
		return nil, berrors.E("spacefile.decode", berrors.FormatError,
			fmt.Sprintf("unrecognized magic/version %q/%d", magic, version))
	}
}

func decodeAxesOnly(raw []byte) ([]axis.Axis, error) {
	r := bytes.NewReader(raw)
	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil {
		return nil, berrors.E("spacefile.decodeAxesOnly", berrors.FormatError, "truncated header")
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, berrors.E("spacefile.decodeAxesOnly", berrors.FormatError, "truncated header")
	}
	switch {
	case string(magic) == magicCurrent && version == versionCurrent:
		return readAxes(r)
	case string(magic) == magicLegacy && version == versionLegacy:
		if _, err := readString(r); err != nil { // skip legacy outer label
			return nil, err
		}
		return readAxes(r)
	default:
		return nil, berrors.E("spacefile.decodeAxesOnly", berrors.FormatError,
			fmt.Sprintf("unrecognized magic/version %q/%d", magic, version))
	}
}

func decodeCurrentBody(r *bytes.Reader) (*space.Space, error) {
	axes, err := readAxes(r)
	if err != nil {
		return nil, err
	}
	return decodeArrays(r, axes, true)
}

// decodeLegacyBody reads the header variant emitted before binoculars
// introduced per-block checksums: the same axes tuple, but nested one level
// deeper behind an outer container label.
func decodeLegacyBody(r *bytes.Reader) (*space.Space, error) {
	if _, err := readString(r); err != nil {
		return nil, err
	}
	axes, err := readAxes(r)
	if err != nil {
		return nil, err
	}
	return decodeArrays(r, axes, false)
}

func readAxes(r *bytes.Reader) ([]axis.Axis, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, berrors.E("spacefile.readAxes", berrors.FormatError, "truncated axis count")
	}
	axes := make([]axis.Axis, count)
	for i := range axes {
		label, err := readString(r)
		if err != nil {
			return nil, err
		}
		min, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		max, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		res, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		a, err := axis.New(label, min, max, res)
		if err != nil {
			return nil, err
		}
		axes[i] = a
	}
	return axes, nil
}

func decodeArrays(r *bytes.Reader, axes []axis.Axis, checksummed bool) (*space.Space, error) {
	dimCount, err := readUint32(r)
	if err != nil {
		return nil, berrors.E("spacefile.decodeArrays", berrors.FormatError, "truncated shape")
	}
	shape := make([]int, dimCount)
	n := 1
	for i := range shape {
		l, err := readUint32(r)
		if err != nil {
			return nil, berrors.E("spacefile.decodeArrays", berrors.FormatError, "truncated shape")
		}
		shape[i] = int(l)
		n *= int(l)
	}

	photonsRaw, err := readChecksummedBlock(r, checksummed)
	if err != nil {
		return nil, err
	}
	contribsRaw, err := readChecksummedBlock(r, checksummed)
	if err != nil {
		return nil, err
	}
	if len(photonsRaw) != n*8 || len(contribsRaw) != n*4 {
		return nil, berrors.E("spacefile.decodeArrays", berrors.FormatError, "array length does not match declared shape")
	}

	s, err := space.New(axes)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		s.Photons[i] = math.Float64frombits(binary.BigEndian.Uint64(photonsRaw[i*8:]))
		s.Contributions[i] = binary.BigEndian.Uint32(contribsRaw[i*4:])
	}
	return s, nil
}

func readChecksummedBlock(r *bytes.Reader, checksummed bool) ([]byte, error) {
	length, err := readUint64(r)
	if err != nil {
		return nil, berrors.E("spacefile.readChecksummedBlock", berrors.FormatError, "truncated block length")
	}
	var want uint64
	if checksummed {
		want, err = readUint64(r)
		if err != nil {
			return nil, berrors.E("spacefile.readChecksummedBlock", berrors.FormatError, "truncated block checksum")
		}
	}
	raw := make([]byte, length)
	if _, err := r.Read(raw); err != nil {
		return nil, berrors.E("spacefile.readChecksummedBlock", berrors.FormatError, "truncated block")
	}
	if checksummed {
		if got := seahash.Sum64(raw); got != want {
			return nil, berrors.E("spacefile.readChecksummedBlock", berrors.FormatError, "checksum mismatch")
		}
	}
	return raw, nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readFloat64(r *bytes.Reader) (float64, error) {
	v, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func readString(r *bytes.Reader) (string, error) {
	l, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, l)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}
