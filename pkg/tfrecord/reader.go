// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tfrecord

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// MaxRecordLength is the largest record a Reader accepts. A header with a larger length is reported as
// ErrCorrupted, without allocating the record.
const MaxRecordLength = 1 << 30

// Reader reads records sequentially.
type Reader struct {
	r      io.Reader
	gz     *gzip.Reader
	closer io.Closer
	header [headerSize]byte
	footer [footerSize]byte
	count  int

	// maxLength is MaxRecordLength, or the file size if it is smaller and known.
	maxLength uint64
}

// NewReader creates a Reader of records from r, with the given compression.
func NewReader(r io.Reader, compression Compression) (*Reader, error) {
	rr := &Reader{maxLength: MaxRecordLength}
	buffered := bufio.NewReader(r)
	switch compression {
	case None:
		rr.r = buffered
	case Gzip:
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open GZIP stream")
		}
		rr.gz = gz
		rr.r = gz
	default:
		return nil, errors.Errorf("invalid compression %d", compression)
	}
	return rr, nil
}

// Open opens the TFRecord file at filePath. Close must be called when done.
func Open(filePath string, compression Compression) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open TFRecord file %q", filePath)
	}
	rr, err := NewReader(f, compression)
	if err != nil {
		_ = f.Close()
		return nil, errors.WithMessagef(err, "TFRecord file %q", filePath)
	}
	rr.closer = f
	if info, err := f.Stat(); err == nil && compression == None && info.Mode().IsRegular() {
		rr.maxLength = min(rr.maxLength, uint64(info.Size()))
	}
	return rr, nil
}

// Next returns the next record. It returns io.EOF when there are no more records, and an error wrapping
// ErrCorrupted if the record is truncated, fails its checksums or its length is larger than MaxRecordLength
// (or the size of the file).
func (rr *Reader) Next() ([]byte, error) {
	n, err := io.ReadFull(rr.r, rr.header[:])
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrCorrupted, "record #%d: truncated header (%d bytes)", rr.count, n)
		}
		return nil, errors.Wrapf(err, "record #%d: failed to read header", rr.count)
	}
	length := binary.LittleEndian.Uint64(rr.header[:8])
	if maskedCRC(rr.header[:8]) != binary.LittleEndian.Uint32(rr.header[8:]) {
		return nil, errors.Wrapf(ErrCorrupted, "record #%d: length checksum mismatch", rr.count)
	}
	if length > rr.maxLength {
		return nil, errors.Wrapf(ErrCorrupted, "record #%d: length %d exceeds the limit of %d bytes",
			rr.count, length, rr.maxLength)
	}
	record := make([]byte, length)
	if _, err = io.ReadFull(rr.r, record); err != nil {
		return nil, errors.Wrapf(ErrCorrupted, "record #%d: truncated data: %v", rr.count, err)
	}
	if _, err = io.ReadFull(rr.r, rr.footer[:]); err != nil {
		return nil, errors.Wrapf(ErrCorrupted, "record #%d: truncated footer: %v", rr.count, err)
	}
	if maskedCRC(record) != binary.LittleEndian.Uint32(rr.footer[:]) {
		return nil, errors.Wrapf(ErrCorrupted, "record #%d: data checksum mismatch", rr.count)
	}
	rr.count++
	return record, nil
}

// ForEach calls fn for every remaining record, until the end of the file or until fn returns an error.
func (rr *Reader) ForEach(fn func(record []byte) error) error {
	for {
		record, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err = fn(record); err != nil {
			return err
		}
	}
}

// Close releases the GZIP stream, and the file if the Reader was created with Open.
func (rr *Reader) Close() error {
	var firstErr error
	if rr.gz != nil {
		firstErr = rr.gz.Close()
		rr.gz = nil
	}
	if rr.closer != nil {
		if err := rr.closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		rr.closer = nil
	}
	return firstErr
}

// ReadAll returns all records of the TFRecord file at filePath.
func ReadAll(filePath string, compression Compression) ([][]byte, error) {
	rr, err := Open(filePath, compression)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rr.Close() }()
	var records [][]byte
	err = rr.ForEach(func(record []byte) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", filePath)
	}
	return records, nil
}
