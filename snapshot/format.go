package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/searchcache/blobstore"
	"github.com/hupe1980/searchcache/codec"
	"github.com/hupe1980/searchcache/resource"
	"github.com/hupe1980/searchcache/store"
)

// Snapshot file layout (little endian):
//
//	magic        [4]byte "SCSN"
//	version      uint16
//	compression  uint8
//	codecLen     uint8
//	codec        [codecLen]byte
//	entries      uint64
//	bodyLen      uint64  uncompressed body size
//	bodyCRC      uint32  CRC32C of the uncompressed body
//	body         compressed blocks of codec-encoded entries
const (
	magic         = "SCSN"
	formatVersion = 1
)

var (
	// ErrInvalidSnapshot is returned when a blob is not a readable snapshot.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrUnsupportedVersion is returned for snapshots written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrChecksumMismatch is returned when the body does not match its checksum.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Header describes a snapshot.
type Header struct {
	Version     uint16
	Compression Compression
	Codec       string
	Entries     uint64
	BodyLen     uint64
	BodyCRC     uint32
}

func (h Header) marshal() []byte {
	buf := make([]byte, 0, 4+2+1+1+len(h.Codec)+8+8+4)
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint16(buf, h.Version)
	buf = append(buf, byte(h.Compression), byte(len(h.Codec)))
	buf = append(buf, h.Codec...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Entries)
	buf = binary.LittleEndian.AppendUint64(buf, h.BodyLen)
	buf = binary.LittleEndian.AppendUint32(buf, h.BodyCRC)
	return buf
}

func readHeader(r io.Reader) (Header, error) {
	var fixed [8]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, fmt.Errorf("%w: short header", ErrInvalidSnapshot)
	}
	if string(fixed[:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}

	h := Header{
		Version:     binary.LittleEndian.Uint16(fixed[4:]),
		Compression: Compression(fixed[6]),
	}
	if h.Version != formatVersion {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !h.Compression.valid() {
		return Header{}, fmt.Errorf("%w: unknown compression %d", ErrInvalidSnapshot, fixed[6])
	}

	rest := make([]byte, int(fixed[7])+8+8+4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Header{}, fmt.Errorf("%w: short header", ErrInvalidSnapshot)
	}
	n := int(fixed[7])
	h.Codec = string(rest[:n])
	h.Entries = binary.LittleEndian.Uint64(rest[n:])
	h.BodyLen = binary.LittleEndian.Uint64(rest[n+8:])
	h.BodyCRC = binary.LittleEndian.Uint32(rest[n+16:])
	return h, nil
}

// Encode writes entries as a snapshot to w.
func Encode[K comparable, V any](w io.Writer, entries []store.Entry[K, V], optFns ...func(*Options)) (Header, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return Header{}, err
	}

	var body bytes.Buffer
	enc := opts.Codec.NewEncoder(&body)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return Header{}, fmt.Errorf("encode entry %v: %w", entries[i].Key, err)
		}
	}

	h := Header{
		Version:     formatVersion,
		Compression: opts.Compression,
		Codec:       opts.Codec.Name(),
		Entries:     uint64(len(entries)),
		BodyLen:     uint64(body.Len()),
		BodyCRC:     crc32.Checksum(body.Bytes(), castagnoli),
	}
	if _, err := w.Write(h.marshal()); err != nil {
		return Header{}, err
	}

	bw := newBlockWriter(w, opts.Compression, opts.BlockSize)
	if _, err := bw.Write(body.Bytes()); err != nil {
		return Header{}, err
	}
	if err := bw.Flush(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Decode reads a snapshot written by Encode. The codec is taken from the
// header, so snapshots written with any built-in codec can be read.
func Decode[K comparable, V any](r io.Reader) ([]store.Entry[K, V], Header, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, Header{}, err
	}

	c, ok := codec.ByName(h.Codec)
	if !ok {
		return nil, Header{}, fmt.Errorf("%w: unknown codec %q", ErrInvalidSnapshot, h.Codec)
	}

	body, err := io.ReadAll(newBlockReader(r, h.Compression))
	if err != nil {
		if errors.Is(err, errCorruptBlock) {
			return nil, Header{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		return nil, Header{}, err
	}
	if uint64(len(body)) != h.BodyLen || crc32.Checksum(body, castagnoli) != h.BodyCRC {
		return nil, Header{}, ErrChecksumMismatch
	}

	dec := c.NewDecoder(bytes.NewReader(body))
	entries := make([]store.Entry[K, V], 0, h.Entries)
	for i := uint64(0); i < h.Entries; i++ {
		var e store.Entry[K, V]
		if err := dec.Decode(&e); err != nil {
			return nil, Header{}, fmt.Errorf("%w: entry %d: %w", ErrInvalidSnapshot, i, err)
		}
		entries = append(entries, e)
	}
	return entries, h, nil
}

// Write encodes entries and stores them under name in bs.
func Write[K comparable, V any](ctx context.Context, bs blobstore.BlobStore, name string, entries []store.Entry[K, V], optFns ...func(*Options)) (Header, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	var buf bytes.Buffer
	h, err := Encode(resource.NewRateLimitedWriter(ctx, &buf, opts.ResourceController), entries, optFns...)
	if err != nil {
		return Header{}, err
	}
	if err := bs.Put(ctx, name, buf.Bytes()); err != nil {
		return Header{}, fmt.Errorf("put snapshot %s: %w", name, err)
	}
	return h, nil
}

// Read loads the snapshot stored under name in bs.
func Read[K comparable, V any](ctx context.Context, bs blobstore.BlobStore, name string, optFns ...func(*Options)) ([]store.Entry[K, V], Header, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	rc, err := bs.Open(ctx, name)
	if err != nil {
		return nil, Header{}, fmt.Errorf("open snapshot %s: %w", name, err)
	}
	defer rc.Close()

	return Decode[K, V](resource.NewRateLimitedReader(ctx, rc, opts.ResourceController))
}
