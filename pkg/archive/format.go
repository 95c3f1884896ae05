// Package archive implements the squish on-disk format and the
// concurrent pack/unpack engines around it.
//
// An archive is a single ordered byte stream (all integers
// little-endian):
//
//	Header:       "squish" ++ version string (8 ASCII bytes, "MM.mm.pp")
//	Timestamp:    u64 seconds since epoch
//	ChunkCount:   u64 unique chunk count (written as 0, patched at finalize)
//	ChunkTable:   per unique chunk: digest(16) ++ original_len(u64) ++
//	              compressed_len(u64) ++ compressed bytes
//	FileCount:    u32
//	FileTable:    per file: path_len(u32) ++ UTF-8 path ++
//	              original_size(u64) ++ chunk_count(u32) ++ digests
//
// The chunk table contains each unique digest exactly once; file-table
// entries reference digests that must exist in the chunk table.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const magicPrefix = "squish"

// Version is the running format version. An archive is readable only
// when its major and minor components equal the running version's; the
// patch component is ignored.
const Version = "00.01.01"

// writeHeader writes the magic prefix and running version string.
func writeHeader(w io.Writer) error {
	if _, err := w.Write([]byte(magicPrefix + Version)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// writeTimestamp writes the current time as a u64 of seconds since the
// epoch.
func writeTimestamp(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(time.Now().Unix())); err != nil {
		return fmt.Errorf("write timestamp: %w", err)
	}
	return nil
}

// verifyHeader reads and validates the archive header, returning the
// version string the archive was written with. The magic prefix must
// match exactly and the version's major.minor must equal the running
// version's.
func verifyHeader(r io.Reader) (string, error) {
	header := make([]byte, len(magicPrefix)+len(Version))
	if _, err := io.ReadFull(r, header); err != nil {
		return "", fmt.Errorf("%w: read header: %v", ErrInvalidFormat, err)
	}

	if string(header[:len(magicPrefix)]) != magicPrefix {
		return "", fmt.Errorf("%w: magic prefix mismatch", ErrInvalidFormat)
	}

	version := string(header[len(magicPrefix):])
	archiveParts := strings.Split(version, ".")
	if len(archiveParts) < 2 {
		return "", fmt.Errorf("%w: malformed version %q", ErrInvalidFormat, version)
	}
	currentParts := strings.Split(Version, ".")

	if archiveParts[0] != currentParts[0] || archiveParts[1] != currentParts[1] {
		return "", fmt.Errorf("%w: archive version %s, running version %s",
			ErrIncompatibleVersion, version, Version)
	}

	return version, nil
}

// writePlaceholderUint64 writes 8 zero bytes at the current position
// and returns the offset where they were written, to be patched later
// with patchUint64 once the real value is known.
func writePlaceholderUint64(f *os.File) (int64, error) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("seek placeholder: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(0)); err != nil {
		return 0, fmt.Errorf("write placeholder: %w", err)
	}
	return pos, nil
}

// patchUint64 overwrites the u64 at a previously recorded offset and
// returns the stream to the end for continued appending.
func patchUint64(f *os.File, pos int64, value uint64) error {
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seek to placeholder: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, value); err != nil {
		return fmt.Errorf("patch placeholder: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek back to end: %w", err)
	}
	return nil
}
