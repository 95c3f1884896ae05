// Package chunk implements the deduplication engine: content hashing,
// the concurrent chunk store, and the compression codec. A chunk is a
// window of at most MaxSize bytes read from one file; its digest is the
// sole identity used for deduplication.
package chunk

import (
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"
)

// MaxSize is the fixed chunk window size. Files are read in sequential
// windows of up to this many bytes; the final window of a file may be
// shorter.
const MaxSize = 2048 * 1024 // 2 MiB

// DigestSize is the width of a chunk digest in bytes.
const DigestSize = 16

// Digest identifies a chunk by its content. Equal bytes always produce
// an equal digest; the digest is a dedup key, not a security primitive.
type Digest [DigestSize]byte

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Sum computes the content digest of data: a BLAKE3 hash truncated to
// 16 bytes. Deterministic across processes (no per-process salt) and
// safe to call concurrently.
func Sum(data []byte) Digest {
	full := blake3.Sum256(data)
	var d Digest
	copy(d[:], full[:DigestSize])
	return d
}

// Store is the concurrent membership set of chunk digests seen during
// one pack operation. It is the sole arbiter of the at-most-once
// compression guarantee: for any digest, exactly one Insert call across
// all racing goroutines receives the compressed payload.
//
// A Store performs no I/O and is discarded with the archive writer that
// owns it.
type Store struct {
	seen   sync.Map // Digest -> struct{}
	unique atomic.Uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Insert hashes data and atomically records first sight of its digest.
// The winner of the check-and-set compresses data and receives the
// compressed payload; every other caller gets nil and must not re-emit
// the chunk. The check-and-set gates compression, so a duplicate chunk
// is never compressed at all.
func (s *Store) Insert(data []byte) (Digest, []byte) {
	digest := Sum(data)
	if _, loaded := s.seen.LoadOrStore(digest, struct{}{}); loaded {
		return digest, nil
	}
	s.unique.Add(1)
	return digest, Compress(data)
}

// Len returns the number of unique digests inserted so far.
func (s *Store) Len() uint64 {
	return s.unique.Load()
}
