package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the compression algorithm of a snapshot body.
type Compression uint8

const (
	// CompressionNone stores the body uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZSTD
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// If CompressedSize == 0, the block is stored uncompressed.
const blockHeaderSize = 8

// DefaultBlockSize is the uncompressed size of a body block.
const DefaultBlockSize = 256 * 1024

var errCorruptBlock = errors.New("corrupt snapshot block")

// compressBlock compresses a block using the specified algorithm and prepends
// the block header. Blocks that do not shrink by at least 10% are stored raw.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(result[4:], 0) // 0 = uncompressed
		copy(result[blockHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(result[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(result[4:], uint32(len(compressed)))
	copy(result[blockHeaderSize:], compressed)
	return result, nil
}

func decompressBlock(data []byte, uncompressedSize uint32, c Compression) ([]byte, error) {
	result := make([]byte, uncompressedSize)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(data, result)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return result, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(data, result[:0])
		if err != nil {
			return nil, err
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, errors.New("decompressed size mismatch")
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: compressed block in %s body", errCorruptBlock, c)
	}
}

// blockWriter buffers writes into fixed-size blocks and writes each block
// compressed to the underlying writer.
type blockWriter struct {
	w           io.Writer
	compression Compression
	blockSize   int
	buffer      *bytes.Buffer
	written     int64
}

func newBlockWriter(w io.Writer, c Compression, blockSize int) *blockWriter {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &blockWriter{
		w:           w,
		compression: c,
		blockSize:   blockSize,
		buffer:      bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

// Write writes data to the buffer, flushing blocks as needed.
func (b *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := b.blockSize - b.buffer.Len()
		if space <= 0 {
			if err := b.Flush(); err != nil {
				return total, err
			}
			space = b.blockSize
		}

		n, _ := b.buffer.Write(p[:min(len(p), space)])
		total += n
		p = p[n:]
	}
	return total, nil
}

// Flush compresses and writes the current block.
func (b *blockWriter) Flush() error {
	if b.buffer.Len() == 0 {
		return nil
	}

	block, err := compressBlock(b.buffer.Bytes(), b.compression)
	if err != nil {
		return err
	}

	n, err := b.w.Write(block)
	b.written += int64(n)
	if err != nil {
		return err
	}
	b.buffer.Reset()
	return nil
}

// blockReader decompresses the blocks written by blockWriter.
type blockReader struct {
	r           io.Reader
	compression Compression
	header      [blockHeaderSize]byte
	current     []byte
}

func newBlockReader(r io.Reader, c Compression) *blockReader {
	return &blockReader{r: r, compression: c}
}

func (b *blockReader) Read(p []byte) (int, error) {
	for len(b.current) == 0 {
		if err := b.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.current)
	b.current = b.current[n:]
	return n, nil
}

func (b *blockReader) next() error {
	if _, err := io.ReadFull(b.r, b.header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated header", errCorruptBlock)
		}
		return err // io.EOF ends the body
	}

	uncompressedSize := binary.LittleEndian.Uint32(b.header[0:])
	compressedSize := binary.LittleEndian.Uint32(b.header[4:])

	size := compressedSize
	if size == 0 {
		size = uncompressedSize
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(b.r, data); err != nil {
		return fmt.Errorf("%w: block extends beyond data", errCorruptBlock)
	}

	if compressedSize == 0 {
		b.current = data
		return nil
	}

	block, err := decompressBlock(data, uncompressedSize, b.compression)
	if err != nil {
		return err
	}
	b.current = block
	return nil
}
