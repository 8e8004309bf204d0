// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tfrecord reads and writes TFRecord files: a sequence of binary records, each framed as
//
//	uint64 length (little-endian)
//	uint32 masked CRC32-C of length
//	byte   data[length]
//	uint32 masked CRC32-C of data
//
// Files can optionally be GZIP compressed as a whole, which is the format TFX components produce and expect.
// There is no index: records can only be read back sequentially.
package tfrecord

import (
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/pkg/errors"
)

// Compression of a TFRecord file.
type Compression int

const (
	// None writes the records uncompressed.
	None Compression = iota

	// Gzip compresses the whole stream with GZIP.
	Gzip
)

// String implements fmt.Stringer. It returns the value accepted by ParseCompression.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	}
	return "unknown"
}

// ParseCompression converts "none" (or "") and "gzip" (case-insensitive) to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	}
	return None, errors.Errorf("unknown TFRecord compression %q, valid values are \"none\" or \"gzip\"", name)
}

// MarshalText implements encoding.TextMarshaler, so it can be used in configuration files.
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(text []byte) error {
	parsed, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ErrCorrupted is returned when a record fails its checksum or is truncated.
var ErrCorrupted = errors.New("corrupted TFRecord")

const (
	headerSize = 8 + 4
	footerSize = 4
	maskDelta  = 0xa282ead8
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// maskedCRC returns the masked CRC32-C used by TFRecord framing.
func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, crc32cTable)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// appendHeader appends the length and its masked checksum.
func appendHeader(buf []byte, length int) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(length))
	return binary.LittleEndian.AppendUint32(buf, maskedCRC(buf[len(buf)-8:]))
}
