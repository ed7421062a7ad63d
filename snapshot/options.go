package snapshot

import (
	"errors"

	"github.com/hupe1980/searchcache/codec"
	"github.com/hupe1980/searchcache/resource"
)

// Options configures snapshot encoding and the Manager.
type Options struct {
	// Codec encodes entries. Defaults to codec.Default.
	Codec codec.Codec

	// Compression of the snapshot body. Defaults to CompressionLZ4.
	Compression Compression

	// BlockSize is the uncompressed size of a body block.
	BlockSize int

	// ResourceController throttles snapshot IO. Nil means unlimited.
	ResourceController *resource.Controller

	// Committer publishes new versions. Defaults to a BlobCommitter on the
	// manager's blob store.
	Committer Committer

	// Prefix is prepended to every blob name written by the Manager.
	Prefix string

	// Retain is the number of snapshots kept after a successful save.
	// If 0, old snapshots are never deleted.
	Retain int
}

// DefaultOptions contains the default snapshot options.
var DefaultOptions = Options{
	Codec:       codec.Default,
	Compression: CompressionLZ4,
	BlockSize:   DefaultBlockSize,
	Prefix:      "snapshots/",
}

func (o Options) validate() error {
	if o.Codec == nil {
		return errors.New("snapshot: codec is required")
	}
	if len(o.Codec.Name()) > 255 {
		return errors.New("snapshot: codec name too long")
	}
	if !o.Compression.valid() {
		return errors.New("snapshot: unknown compression")
	}
	if o.Retain < 0 {
		return errors.New("snapshot: retain must be non-negative")
	}
	return nil
}

// WithCodec sets the entry codec.
func WithCodec(c codec.Codec) func(*Options) {
	return func(o *Options) {
		o.Codec = c
	}
}

// WithCompression sets the body compression.
func WithCompression(c Compression) func(*Options) {
	return func(o *Options) {
		o.Compression = c
	}
}

// WithBlockSize sets the uncompressed block size.
func WithBlockSize(n int) func(*Options) {
	return func(o *Options) {
		o.BlockSize = n
	}
}

// WithResourceController throttles snapshot IO with rc.
func WithResourceController(rc *resource.Controller) func(*Options) {
	return func(o *Options) {
		o.ResourceController = rc
	}
}

// WithCommitter sets the version committer.
func WithCommitter(c Committer) func(*Options) {
	return func(o *Options) {
		o.Committer = c
	}
}

// WithPrefix sets the blob name prefix.
func WithPrefix(prefix string) func(*Options) {
	return func(o *Options) {
		o.Prefix = prefix
	}
}

// WithRetain keeps only the n most recent snapshots.
func WithRetain(n int) func(*Options) {
	return func(o *Options) {
		o.Retain = n
	}
}
