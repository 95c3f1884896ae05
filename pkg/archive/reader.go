package archive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"squish/pkg/chunk"
)

// maxPathLen caps the path length accepted from a file-table entry, so
// a corrupt length field cannot drive an arbitrarily large allocation.
const maxPathLen = 64 * 1024

// Summary is the derived, read-only view of an archive's contents.
type Summary struct {
	UniqueChunks      uint64
	TotalOriginalSize uint64
	ArchiveSize       int64
	// ReductionPercent is (1 - archive/original) * 100, or 0 when the
	// total original size is 0.
	ReductionPercent float64
	CreatedAt        time.Time
	Version          string
	Files            []FileEntry
}

// FileEntry describes one archived file in a Summary.
type FileEntry struct {
	Path         string
	OriginalSize uint64
}

// fileRebuildEntry is a file-table entry read for unpacking: the path
// plus the ordered digests whose concatenation reconstructs the file.
type fileRebuildEntry struct {
	relPath string
	digests []chunk.Digest
}

// Reader reads a squish archive. Open validates the header and indexes
// the chunk table without decompressing anything, so Summary never
// touches chunk payloads; Unpack decompresses the chunk table into
// memory and rebuilds files in parallel.
type Reader struct {
	file        *os.File
	archiveSize int64
	version     string
	createdAt   time.Time
	chunkCount  uint64
	fileCount   uint32

	chunkTableOffset int64
	fileTableOffset  int64

	opts   Options
	closed bool
}

// Open opens an archive, validates its header, and indexes the chunk
// and file tables. A mismatched magic prefix or an incompatible
// major.minor version is a hard error.
func Open(archivePath string, opts Options) (*Reader, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}

	r := &Reader{file: file, opts: opts.withDefaults()}
	if err := r.index(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// index validates the header and walks the chunk table by seeking past
// each compressed payload, recording where the chunk table and file
// table begin.
func (r *Reader) index() error {
	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	r.archiveSize = info.Size()

	version, err := verifyHeader(r.file)
	if err != nil {
		return err
	}
	r.version = version

	var timestamp uint64
	if err := binary.Read(r.file, binary.LittleEndian, &timestamp); err != nil {
		return fmt.Errorf("%w: read timestamp: %v", ErrInvalidFormat, err)
	}
	r.createdAt = time.Unix(int64(timestamp), 0)

	if err := binary.Read(r.file, binary.LittleEndian, &r.chunkCount); err != nil {
		return fmt.Errorf("%w: read chunk count: %v", ErrInvalidFormat, err)
	}

	r.chunkTableOffset, err = r.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("seek chunk table: %w", err)
	}

	// Skip-scan the chunk table: read each record's fixed fields and
	// seek past the payload. No payload is decompressed here.
	var record [chunk.DigestSize + 16]byte
	for i := uint64(0); i < r.chunkCount; i++ {
		if _, err := io.ReadFull(r.file, record[:]); err != nil {
			return fmt.Errorf("%w: read chunk record %d: %v", ErrInvalidFormat, i, err)
		}
		compressedLen := binary.LittleEndian.Uint64(record[chunk.DigestSize+8:])
		if _, err := r.file.Seek(int64(compressedLen), io.SeekCurrent); err != nil {
			return fmt.Errorf("%w: skip chunk record %d: %v", ErrInvalidFormat, i, err)
		}
	}

	if err := binary.Read(r.file, binary.LittleEndian, &r.fileCount); err != nil {
		return fmt.Errorf("%w: read file count: %v", ErrInvalidFormat, err)
	}

	r.fileTableOffset, err = r.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("seek file table: %w", err)
	}
	return nil
}

// Summary reads the file table and aggregates sizes. Chunk digests are
// skipped, not read; no chunk payload is decompressed.
func (r *Reader) Summary() (*Summary, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if _, err := r.file.Seek(r.fileTableOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek file table: %w", err)
	}

	in := bufio.NewReader(r.file)
	var totalOriginal uint64
	files := make([]FileEntry, 0, r.fileCount)

	for i := uint32(0); i < r.fileCount; i++ {
		path, err := readPath(in)
		if err != nil {
			return nil, err
		}

		var size uint64
		if err := binary.Read(in, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: read size of %s: %v", ErrInvalidFormat, path, err)
		}
		totalOriginal += size

		var chunkCount uint32
		if err := binary.Read(in, binary.LittleEndian, &chunkCount); err != nil {
			return nil, fmt.Errorf("%w: read chunk count of %s: %v", ErrInvalidFormat, path, err)
		}
		if _, err := in.Discard(int(chunkCount) * chunk.DigestSize); err != nil {
			return nil, fmt.Errorf("%w: skip digests of %s: %v", ErrInvalidFormat, path, err)
		}

		files = append(files, FileEntry{Path: path, OriginalSize: size})
	}

	var reduction float64
	if totalOriginal > 0 {
		reduction = (1 - float64(r.archiveSize)/float64(totalOriginal)) * 100
	}

	return &Summary{
		UniqueChunks:      r.chunkCount,
		TotalOriginalSize: totalOriginal,
		ArchiveSize:       r.archiveSize,
		ReductionPercent:  reduction,
		CreatedAt:         r.createdAt,
		Version:           r.version,
		Files:             files,
	}, nil
}

// Unpack decompresses every chunk into memory, then rebuilds all files
// under outputRoot in parallel, creating parent directories as needed.
// A digest referenced by a file but absent from the chunk table fails
// the whole unpack with a MissingChunkError naming that file.
func (r *Reader) Unpack(outputRoot string) error {
	if r.closed {
		return ErrClosed
	}

	chunks, err := r.readChunks()
	if err != nil {
		return err
	}

	entries, err := r.readRebuildEntries()
	if err != nil {
		return err
	}

	r.opts.Progress.SetMessage("Rebuilding files")
	r.opts.Progress.SetTotal(uint64(len(entries)))

	errs := make(chan error, len(entries))
	sem := make(chan struct{}, r.opts.MaxThreads)
	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(entry fileRebuildEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := rebuildFile(entry, chunks, outputRoot); err != nil {
				errs <- err
				return
			}
			r.opts.Progress.Inc(1)
		}(entry)
	}
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return err
	}

	r.opts.Logger.Debug("unpack complete",
		zap.Int("files", len(entries)),
		zap.Int("unique_chunks", len(chunks)))
	return nil
}

// Close releases the underlying file. No further operations are
// permitted afterwards.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// readChunks decompresses every chunk-table entry into a map keyed by
// digest.
func (r *Reader) readChunks() (map[chunk.Digest][]byte, error) {
	if _, err := r.file.Seek(r.chunkTableOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek chunk table: %w", err)
	}

	r.opts.Progress.SetMessage("Reading chunks")
	r.opts.Progress.SetTotal(r.chunkCount)

	in := bufio.NewReaderSize(r.file, 1<<20)
	chunks := make(map[chunk.Digest][]byte, r.chunkCount)

	var header [chunk.DigestSize + 16]byte
	for i := uint64(0); i < r.chunkCount; i++ {
		if _, err := io.ReadFull(in, header[:]); err != nil {
			return nil, fmt.Errorf("%w: read chunk record %d: %v", ErrInvalidFormat, i, err)
		}

		var digest chunk.Digest
		copy(digest[:], header[:chunk.DigestSize])
		compressedLen := binary.LittleEndian.Uint64(header[chunk.DigestSize+8:])
		if compressedLen > chunk.MaxDecompressedSize {
			return nil, fmt.Errorf("%w: chunk record %d claims %d compressed bytes",
				ErrInvalidFormat, i, compressedLen)
		}

		compressed := make([]byte, compressedLen)
		if _, err := io.ReadFull(in, compressed); err != nil {
			return nil, fmt.Errorf("%w: read chunk payload %d: %v", ErrInvalidFormat, i, err)
		}

		data, err := chunk.Decompress(compressed, chunk.MaxDecompressedSize)
		if err != nil {
			return nil, fmt.Errorf("decompress chunk %s: %w", digest, err)
		}

		chunks[digest] = data
		r.opts.Progress.Inc(1)
	}

	return chunks, nil
}

// readRebuildEntries reads the full file table, digests included.
func (r *Reader) readRebuildEntries() ([]fileRebuildEntry, error) {
	if _, err := r.file.Seek(r.fileTableOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek file table: %w", err)
	}

	in := bufio.NewReader(r.file)
	entries := make([]fileRebuildEntry, 0, r.fileCount)

	for i := uint32(0); i < r.fileCount; i++ {
		path, err := readPath(in)
		if err != nil {
			return nil, err
		}

		var size uint64
		if err := binary.Read(in, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: read size of %s: %v", ErrInvalidFormat, path, err)
		}

		var chunkCount uint32
		if err := binary.Read(in, binary.LittleEndian, &chunkCount); err != nil {
			return nil, fmt.Errorf("%w: read chunk count of %s: %v", ErrInvalidFormat, path, err)
		}

		digests := make([]chunk.Digest, chunkCount)
		for j := range digests {
			if _, err := io.ReadFull(in, digests[j][:]); err != nil {
				return nil, fmt.Errorf("%w: read digest %d of %s: %v", ErrInvalidFormat, j, path, err)
			}
		}

		entries = append(entries, fileRebuildEntry{relPath: path, digests: digests})
	}

	return entries, nil
}

// rebuildFile writes one output file by concatenating its decompressed
// chunks in recorded order.
func rebuildFile(entry fileRebuildEntry, chunks map[chunk.Digest][]byte, outputRoot string) error {
	// Packed paths are always relative and inside the root; a path
	// that climbs out of outputRoot means a tampered archive.
	if !filepath.IsLocal(filepath.FromSlash(entry.relPath)) {
		return fmt.Errorf("%w: %s", ErrPathOutsideRoot, entry.relPath)
	}

	fullPath := filepath.Join(outputRoot, filepath.FromSlash(entry.relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", entry.relPath, err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", fullPath, err)
	}

	out := bufio.NewWriter(f)
	for _, digest := range entry.digests {
		data, ok := chunks[digest]
		if !ok {
			f.Close()
			return &MissingChunkError{Path: entry.relPath}
		}
		if _, err := out.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", fullPath, err)
		}
	}
	if err := out.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", fullPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", fullPath, err)
	}
	return nil
}

// readPath reads a length-prefixed UTF-8 path from the file table.
func readPath(in io.Reader) (string, error) {
	var pathLen uint32
	if err := binary.Read(in, binary.LittleEndian, &pathLen); err != nil {
		return "", fmt.Errorf("%w: read path length: %v", ErrInvalidFormat, err)
	}
	if pathLen > maxPathLen {
		return "", fmt.Errorf("%w: path length %d exceeds limit", ErrInvalidFormat, pathLen)
	}

	pathBytes := make([]byte, pathLen)
	if _, err := io.ReadFull(in, pathBytes); err != nil {
		return "", fmt.Errorf("%w: read path: %v", ErrInvalidFormat, err)
	}
	if !utf8.Valid(pathBytes) {
		return "", fmt.Errorf("%w: path is not valid UTF-8", ErrInvalidFormat)
	}
	return string(pathBytes), nil
}
