package b3tree

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEncodeVectors(t *testing.T) {
	raw, err := os.ReadFile("testdata/vectors.json")
	require.NoError(t, err)
	doc := gjson.ParseBytes(raw)
	chunkSize := int(doc.Get("chunkSize").Int())
	require.Equal(t, DefaultChunkSize, chunkSize)

	doc.Get("vectors").ForEach(func(_, vector gjson.Result) bool {
		t.Run(vector.Get("name").String(), func(t *testing.T) {
			length := int(vector.Get("length").Int())
			data := patternData(length)
			tree := NewTree(data)

			assert.Equal(t, vector.Get("chunks").Uint(), tree.NumChunks())
			assert.Equal(t, vector.Get("split").Uint(), splitPoint(tree.NumChunks()))

			var encoded bytes.Buffer
			require.NoError(t, tree.Encode(&encoded, bytes.NewReader(data)))
			assert.Equal(t, vector.Get("encodedSize").Uint(), uint64(encoded.Len()))
			assert.Equal(t, tree.EncodedSize(), uint64(encoded.Len()))
		})
		return true
	})
}

// The three-chunk slice scenario: a proof for bytes [1024, 1600) carries
// the root pair, the pair over chunks 0-1, and chunk 1's raw bytes.
// Chunk 0 and chunk 2 bytes are excluded.
func TestEncodeRangeThreeChunks(t *testing.T) {
	data := patternData(2600)
	tree := NewTree(data)

	var encoded bytes.Buffer
	require.NoError(t, tree.EncodeRange(&encoded, bytes.NewReader(data), 1024, 1600))
	require.Equal(t, rangeHeaderSize+2*parentPairSize+1024, encoded.Len())

	h := NewHasher(NewBaseHasher())
	leaf0 := h.HashLeaf(0, data[:1024], false)
	leaf1 := h.HashLeaf(1, data[1024:2048], false)
	leaf2 := h.HashLeaf(2, data[2048:], false)
	parent01 := h.HashParent(leaf0, leaf1, false)

	var want bytes.Buffer
	want.Write([]byte{0x28, 0x0a, 0, 0, 0, 0, 0, 0}) // 2600 LE
	want.Write([]byte{0, 0x04, 0, 0, 0, 0, 0, 0})    // 1024 LE
	want.Write([]byte{0x40, 0x06, 0, 0, 0, 0, 0, 0}) // 1600 LE
	want.Write(parent01[:])
	want.Write(leaf2[:])
	want.Write(leaf0[:])
	want.Write(leaf1[:])
	want.Write(data[1024:2048])
	assert.Equal(t, want.Bytes(), encoded.Bytes())
}

func TestEncodeRangePruning(t *testing.T) {
	data := patternData(10 * DefaultChunkSize)
	tree := NewTree(data)

	tests := []struct {
		name       string
		start, end uint64
		wantChunks int // chunks whose bytes appear in the stream
	}{
		{"first byte", 0, 1, 1},
		{"single chunk", 1024, 2048, 1},
		{"chunk straddle", 1000, 1100, 2},
		{"everything", 0, tree.Length(), 10},
		{"last byte", tree.Length() - 1, tree.Length(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var encoded bytes.Buffer
			require.NoError(t, tree.EncodeRange(&encoded, bytes.NewReader(data), tt.start, tt.end))

			payload := tt.wantChunks * DefaultChunkSize
			pairs := (encoded.Len() - rangeHeaderSize - payload) / parentPairSize
			assert.GreaterOrEqual(t, pairs, 1)
			assert.LessOrEqual(t, pairs, 9, "range proof carries too many pairs")
			assert.Equal(t, rangeHeaderSize+pairs*parentPairSize+payload, encoded.Len())
		})
	}
}

func TestEncodeRangeInvalid(t *testing.T) {
	data := patternData(2600)
	tree := NewTree(data)

	tests := []struct {
		name       string
		start, end uint64
	}{
		{"empty range", 100, 100},
		{"inverted range", 200, 100},
		{"past the end", 0, 2601},
		{"entirely past the end", 5000, 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tree.EncodeRange(&bytes.Buffer{}, bytes.NewReader(data), tt.start, tt.end)
			require.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestEncodeEmptyInput(t *testing.T) {
	tree := NewTree(nil)
	var encoded bytes.Buffer
	require.NoError(t, tree.Encode(&encoded, bytes.NewReader(nil)))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, encoded.Bytes())

	err := tree.EncodeRange(&bytes.Buffer{}, bytes.NewReader(nil), 0, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

// eofReaderAt returns io.EOF alongside a full read of its final bytes,
// which the io.ReaderAt contract permits.
type eofReaderAt struct {
	data []byte
}

func (r eofReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) || off+int64(n) == int64(len(r.data)) {
		return n, io.EOF
	}
	return n, nil
}

func TestEncodeEOFAtFinalChunk(t *testing.T) {
	data := patternData(2600)
	tree := NewTree(data)

	var want, got bytes.Buffer
	require.NoError(t, tree.Encode(&want, bytes.NewReader(data)))
	require.NoError(t, tree.Encode(&got, eofReaderAt{data: data}))
	assert.Equal(t, want.Bytes(), got.Bytes())

	// Chunk 2 is the final 552 bytes; only the root pair survives pruning.
	var ranged bytes.Buffer
	require.NoError(t, tree.EncodeRange(&ranged, eofReaderAt{data: data}, 2048, 2600))
	require.Equal(t, rangeHeaderSize+parentPairSize+552, ranged.Len())
}

func TestEncodeSourceError(t *testing.T) {
	data := patternData(2600)
	tree := NewTree(data)

	// The data source only has the first chunk; encoding must surface the
	// read failure instead of emitting a truncated stream silently.
	err := tree.Encode(&bytes.Buffer{}, bytes.NewReader(data[:1024]))
	require.Error(t, err)
}
