package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/searchcache/blobstore"
	"github.com/hupe1980/searchcache/codec"
	"github.com/hupe1980/searchcache/resource"
	"github.com/hupe1980/searchcache/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	Customer string
	City     string
	Price    int
	Note     *string
}

func orders(n int) []store.Entry[int, order] {
	cities := []string{"New York", "Arizona", "Boston"}
	out := make([]store.Entry[int, order], n)
	for i := range out {
		out[i] = store.Entry[int, order]{
			Key: i,
			Value: order{
				Customer: fmt.Sprintf("customer-%d", i%7),
				City:     cities[i%len(cities)],
				Price:    i * 10,
			},
		}
	}
	return out
}

func TestEncodeDecode(t *testing.T) {
	entries := orders(2000)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for _, cd := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
			t.Run(c.String()+"/"+cd.Name(), func(t *testing.T) {
				var buf bytes.Buffer
				h, err := Encode(&buf, entries, WithCompression(c), WithCodec(cd), WithBlockSize(4096))
				require.NoError(t, err)
				assert.Equal(t, uint64(len(entries)), h.Entries)
				assert.Equal(t, cd.Name(), h.Codec)

				got, gh, err := Decode[int, order](&buf)
				require.NoError(t, err)
				assert.Equal(t, h, gh)
				assert.Equal(t, entries, got)
			})
		}
	}
}

func TestEncodeDecodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode[string, int](&buf, nil)
	require.NoError(t, err)

	got, h, err := Decode[string, int](&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, h.Entries)
}

func TestCompressionShrinksBody(t *testing.T) {
	entries := orders(5000)

	var raw, compressed bytes.Buffer
	_, err := Encode(&raw, entries, WithCompression(CompressionNone))
	require.NoError(t, err)
	_, err = Encode(&compressed, entries, WithCompression(CompressionZSTD))
	require.NoError(t, err)

	assert.Less(t, compressed.Len(), raw.Len()/2)
}

func TestDecodeRejectsCorruptData(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, orders(10), WithCompression(CompressionNone))
	require.NoError(t, err)
	valid := buf.Bytes()

	corrupt := func(f func(b []byte) []byte) []byte {
		return f(bytes.Clone(valid))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"Empty", nil, ErrInvalidSnapshot},
		{"BadMagic", corrupt(func(b []byte) []byte { b[0] = 'X'; return b }), ErrInvalidSnapshot},
		{"FutureVersion", corrupt(func(b []byte) []byte { b[4] = 9; return b }), ErrUnsupportedVersion},
		{"UnknownCompression", corrupt(func(b []byte) []byte { b[6] = 42; return b }), ErrInvalidSnapshot},
		{"FlippedBodyByte", corrupt(func(b []byte) []byte { b[len(b)-2] ^= 0xff; return b }), ErrChecksumMismatch},
		{"TruncatedBody", corrupt(func(b []byte) []byte { return b[:len(b)-5] }), ErrInvalidSnapshot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode[int, order](bytes.NewReader(tt.data))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteRead(t *testing.T) {
	stores := map[string]blobstore.BlobStore{
		"Memory": blobstore.NewMemoryStore(),
		"Local":  blobstore.NewLocalStore(t.TempDir()),
	}

	for name, bs := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})
			entries := orders(100)

			_, err := Write(ctx, bs, "a/b.snap", entries, WithResourceController(rc))
			require.NoError(t, err)

			got, _, err := Read[int, order](ctx, bs, "a/b.snap", WithResourceController(rc))
			require.NoError(t, err)
			assert.Equal(t, entries, got)

			_, _, err = Read[int, order](ctx, bs, "missing.snap")
			require.ErrorIs(t, err, blobstore.ErrNotFound)
		})
	}
}
