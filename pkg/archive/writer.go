package archive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"squish/pkg/chunk"
)

// writerChannelDepth bounds the producer→writer message channel. The
// single writer goroutine is the only consumer; when the disk cannot
// keep up, producers block here instead of queueing compressed chunks
// without limit.
const writerChannelDepth = 512

// chunkMessage carries one first-sight chunk from a file worker to the
// writer goroutine.
type chunkMessage struct {
	digest      chunk.Digest
	compressed  []byte
	originalLen uint64
}

// fileMeta is the file-table entry accumulated for one input file:
// its archive-relative path, original byte length, and chunk digests
// in read order.
type fileMeta struct {
	relPath string
	size    uint64
	digests []chunk.Digest
}

// Writer packs a directory tree into an archive. Create one with
// NewWriter and call Pack exactly once. Any failure aborts the whole
// operation and leaves a truncated archive file behind; there is no
// partial-success mode.
type Writer struct {
	file  *os.File
	root  string
	store *chunk.Store
	opts  Options

	messages    chan chunkMessage
	writerDone  chan error
	countOffset int64
}

// NewWriter creates (truncating) the output file, writes the header,
// timestamp, and the unique-chunk-count placeholder, and starts the
// writer goroutine that owns all chunk-table writes.
func NewWriter(root, outputPath string, opts Options) (*Writer, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", outputPath, err)
	}

	if err := writeHeader(file); err != nil {
		file.Close()
		return nil, err
	}
	if err := writeTimestamp(file); err != nil {
		file.Close()
		return nil, err
	}

	// The unique chunk count is unknown until every file has been
	// processed; reserve its 8 bytes now and patch at finalize.
	countOffset, err := writePlaceholderUint64(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &Writer{
		file:        file,
		root:        root,
		store:       chunk.NewStore(),
		opts:        opts.withDefaults(),
		messages:    make(chan chunkMessage, writerChannelDepth),
		writerDone:  make(chan error, 1),
		countOffset: countOffset,
	}

	go func() {
		w.writerDone <- writeChunkRecords(w.file, w.messages)
	}()

	return w, nil
}

// writeChunkRecords is the writer goroutine body. It has exclusive
// write access to the output stream while it runs, so chunk records are
// never interleaved or torn regardless of how many producers race. On a
// write error it records the first failure and keeps draining so that
// producers never block on a full channel.
func writeChunkRecords(f *os.File, messages <-chan chunkMessage) error {
	out := bufio.NewWriterSize(f, 1<<20)

	var firstErr error
	for msg := range messages {
		if firstErr != nil {
			continue
		}
		firstErr = writeChunkRecord(out, msg)
	}

	if err := out.Flush(); firstErr == nil && err != nil {
		firstErr = fmt.Errorf("flush chunk table: %w", err)
	}
	return firstErr
}

func writeChunkRecord(out *bufio.Writer, msg chunkMessage) error {
	if _, err := out.Write(msg.digest[:]); err != nil {
		return fmt.Errorf("write chunk digest: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, msg.originalLen); err != nil {
		return fmt.Errorf("write chunk original length: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint64(len(msg.compressed))); err != nil {
		return fmt.Errorf("write chunk compressed length: %w", err)
	}
	if _, err := out.Write(msg.compressed); err != nil {
		return fmt.Errorf("write chunk payload: %w", err)
	}
	return nil
}

// Pack processes every input file through the bounded worker pool,
// finalizes the chunk table, appends the file table, and returns the
// final archive size in bytes. The file list normally comes from
// fsutil.CollectFiles; order does not matter.
func (w *Writer) Pack(files []string) (int64, error) {
	w.opts.Progress.SetMessage("Packing")
	w.opts.Progress.SetTotal(uint64(len(files)))

	metas := make([]fileMeta, len(files))
	errs := make(chan error, len(files))

	sem := make(chan struct{}, w.opts.MaxThreads)
	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			meta, err := w.packOne(path)
			if err != nil {
				errs <- err
				return
			}
			metas[i] = meta
			w.opts.Progress.Inc(1)
		}(i, path)
	}
	wg.Wait()
	close(errs)

	// The writer goroutine must be joined before anything else touches
	// the output stream: the file table has to land strictly after the
	// chunk table.
	close(w.messages)
	writerErr := <-w.writerDone

	if err := <-errs; err != nil {
		w.file.Close()
		return 0, err
	}
	if writerErr != nil {
		w.file.Close()
		return 0, writerErr
	}

	w.opts.Logger.Debug("chunk table complete",
		zap.Uint64("unique_chunks", w.store.Len()),
		zap.Int("files", len(files)))

	if err := patchUint64(w.file, w.countOffset, w.store.Len()); err != nil {
		w.file.Close()
		return 0, err
	}
	if err := w.writeFileTable(metas); err != nil {
		w.file.Close()
		return 0, err
	}
	if err := w.file.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}

	info, err := os.Stat(w.file.Name())
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	return info.Size(), nil
}

// packOne runs the chunk splitter for a single file. A panic in the
// splitter is surfaced as a pack error instead of taking down the
// process with the writer goroutine still running.
func (w *Writer) packOne(path string) (meta fileMeta, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("archive: panic while packing %s: %v", path, r)
		}
	}()
	return w.processFile(path)
}

// processFile reads path in sequential windows of up to chunk.MaxSize
// bytes, hands each window to the chunk store, and emits a pipeline
// message for every first-sight chunk. The returned digest sequence
// preserves read order, which reconstruction depends on.
func (w *Writer) processFile(path string) (fileMeta, error) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fileMeta{}, fmt.Errorf("%w: %s not under %s", ErrPathOutsideRoot, path, w.root)
	}
	rel = filepath.ToSlash(rel)

	f, err := os.Open(path)
	if err != nil {
		return fileMeta{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fileMeta{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var digests []chunk.Digest
	buf := make([]byte, chunk.MaxSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			digest, compressed := w.store.Insert(buf[:n])
			if compressed != nil {
				w.messages <- chunkMessage{
					digest:      digest,
					compressed:  compressed,
					originalLen: uint64(n),
				}
			}
			digests = append(digests, digest)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return fileMeta{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	w.opts.Logger.Debug("packed file",
		zap.String("path", rel),
		zap.Int("chunks", len(digests)))

	return fileMeta{
		relPath: rel,
		size:    uint64(info.Size()),
		digests: digests,
	}, nil
}

// writeFileTable appends the file metadata table: file count, then per
// file the path, original size, and ordered chunk digests.
func (w *Writer) writeFileTable(metas []fileMeta) error {
	out := bufio.NewWriter(w.file)

	if err := binary.Write(out, binary.LittleEndian, uint32(len(metas))); err != nil {
		return fmt.Errorf("write file count: %w", err)
	}

	for _, meta := range metas {
		pathBytes := []byte(meta.relPath)
		if err := binary.Write(out, binary.LittleEndian, uint32(len(pathBytes))); err != nil {
			return fmt.Errorf("write path length for %s: %w", meta.relPath, err)
		}
		if _, err := out.Write(pathBytes); err != nil {
			return fmt.Errorf("write path for %s: %w", meta.relPath, err)
		}
		if err := binary.Write(out, binary.LittleEndian, meta.size); err != nil {
			return fmt.Errorf("write original size for %s: %w", meta.relPath, err)
		}
		if err := binary.Write(out, binary.LittleEndian, uint32(len(meta.digests))); err != nil {
			return fmt.Errorf("write chunk count for %s: %w", meta.relPath, err)
		}
		for _, digest := range meta.digests {
			if _, err := out.Write(digest[:]); err != nil {
				return fmt.Errorf("write chunk digest for %s: %w", meta.relPath, err)
			}
		}
	}

	if err := out.Flush(); err != nil {
		return fmt.Errorf("flush file table: %w", err)
	}
	return nil
}
