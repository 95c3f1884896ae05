package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat reports an archive whose header does not start
	// with the squish magic prefix or is otherwise malformed.
	ErrInvalidFormat = errors.New("archive: invalid format")

	// ErrIncompatibleVersion reports an archive written by a format
	// version whose major.minor differs from the running version.
	ErrIncompatibleVersion = errors.New("archive: incompatible format version")

	// ErrClosed reports an operation on a closed reader.
	ErrClosed = errors.New("archive: reader is closed")

	// ErrPathOutsideRoot reports an input file whose path does not fall
	// under the pack root.
	ErrPathOutsideRoot = errors.New("archive: file path escapes input root")
)

// MissingChunkError reports a file-table entry referencing a digest
// that is absent from the chunk table. It indicates archive corruption.
type MissingChunkError struct {
	Path string
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("archive: missing chunk for file %s", e.Path)
}
