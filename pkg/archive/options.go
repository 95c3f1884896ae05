package archive

import (
	"go.uber.org/zap"

	"squish/pkg/progress"
)

// DefaultMaxThreads is the worker-pool size used when Options does not
// set one.
const DefaultMaxThreads = 30

// Options configures a pack or unpack operation. The zero value is
// valid: default thread count, no progress reporting, no logging.
type Options struct {
	// MaxThreads bounds the number of files processed in parallel. It
	// is fixed for the lifetime of the operation.
	MaxThreads int

	// Progress receives coarse progress events. Optional.
	Progress progress.Sink

	// Logger receives debug events. Optional.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxThreads < 1 {
		o.MaxThreads = DefaultMaxThreads
	}
	if o.Progress == nil {
		o.Progress = progress.Nop()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
