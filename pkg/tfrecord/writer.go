// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tfrecord

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/gomlx/imagerecords/pkg/support/fsutil"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Writer appends records to an underlying io.Writer.
type Writer struct {
	w           io.Writer
	buffered    *bufio.Writer
	gz          *gzip.Writer
	closer      io.Closer
	header      []byte
	numRecords  int
	bytesFramed int64
	closed      bool
}

// NewWriter creates a Writer of records to w, with the given compression.
//
// Close must be called to flush buffered and compressed data. It does not close w.
func NewWriter(w io.Writer, compression Compression) (*Writer, error) {
	rw := &Writer{header: make([]byte, 0, headerSize)}
	rw.buffered = bufio.NewWriter(w)
	switch compression {
	case None:
		rw.w = rw.buffered
	case Gzip:
		rw.gz = gzip.NewWriter(rw.buffered)
		rw.w = rw.gz
	default:
		return nil, errors.Errorf("invalid compression %d", compression)
	}
	return rw, nil
}

// Create creates (or truncates) the file at filePath and returns a Writer to it.
// Parent directories are created if they don't exist. Close also closes the file.
func Create(filePath string, compression Compression) (*Writer, error) {
	if err := fsutil.EnsureParentDir(filePath); err != nil {
		return nil, err
	}
	f, err := os.Create(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create TFRecord file %q", filePath)
	}
	rw, err := NewWriter(f, compression)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	rw.closer = f
	return rw, nil
}

// Write appends one record. Records larger than MaxRecordLength are rejected, since Reader won't read them.
func (rw *Writer) Write(record []byte) error {
	if rw.closed {
		return errors.New("tfrecord.Writer already closed")
	}
	if len(record) > MaxRecordLength {
		return errors.Errorf("record of %d bytes is larger than tfrecord.MaxRecordLength=%d", len(record), MaxRecordLength)
	}
	rw.header = appendHeader(rw.header[:0], len(record))
	if _, err := rw.w.Write(rw.header); err != nil {
		return errors.Wrap(err, "failed to write TFRecord header")
	}
	if _, err := rw.w.Write(record); err != nil {
		return errors.Wrap(err, "failed to write TFRecord data")
	}
	var footer [footerSize]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(record))
	if _, err := rw.w.Write(footer[:]); err != nil {
		return errors.Wrap(err, "failed to write TFRecord footer")
	}
	rw.numRecords++
	rw.bytesFramed += int64(headerSize + len(record) + footerSize)
	return nil
}

// NumRecords returns the number of records written so far.
func (rw *Writer) NumRecords() int { return rw.numRecords }

// BytesWritten returns the number of framed (uncompressed) bytes written so far.
func (rw *Writer) BytesWritten() int64 { return rw.bytesFramed }

// Close flushes any pending data, and closes the file if the Writer was created with Create.
// It is safe to call it more than once: only the first call has any effect.
func (rw *Writer) Close() error {
	if rw.closed {
		return nil
	}
	rw.closed = true
	var firstErr error
	if rw.gz != nil {
		if err := rw.gz.Close(); err != nil {
			firstErr = errors.Wrap(err, "failed to close GZIP stream")
		}
	}
	if err := rw.buffered.Flush(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "failed to flush TFRecord writer")
	}
	if rw.closer != nil {
		if err := rw.closer.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to close TFRecord file")
		}
	}
	return firstErr
}
