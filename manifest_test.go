package b3tree

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTrip(t *testing.T) {
	data := patternData(2600)
	tree := NewTree(data)
	manifest := tree.Manifest()

	assert.Equal(t, tree.Root(), manifest.Root)
	assert.Equal(t, uint64(2600), manifest.Length)
	assert.Equal(t, uint64(DefaultChunkSize), manifest.ChunkSize)

	encoded, err := manifest.MarshalBinary()
	require.NoError(t, err)

	var decoded Manifest
	require.NoError(t, decoded.UnmarshalBinary(encoded))
	assert.Equal(t, manifest, decoded)
}

func TestManifestRejectsGarbage(t *testing.T) {
	var manifest Manifest
	err := manifest.UnmarshalBinary([]byte("not cbor at all"))
	require.ErrorIs(t, err, ErrInvalidManifest)
}

func TestManifestRejectsZeroChunkSize(t *testing.T) {
	encoded, err := Manifest{Root: CV{1}, Length: 10}.MarshalBinary()
	require.NoError(t, err)

	var decoded Manifest
	err = decoded.UnmarshalBinary(encoded)
	require.ErrorIs(t, err, ErrInvalidManifest)
}

// A consumer that only holds a manifest can decode streams for it.
func TestManifestDrivesDecoder(t *testing.T) {
	data := patternData(5000)
	tree := NewTree(data, ChunkSize(512))
	manifest := tree.Manifest()

	var encoded bytes.Buffer
	require.NoError(t, tree.Encode(&encoded, bytes.NewReader(data)))

	var decoded bytes.Buffer
	_, err := Decode(&decoded, &encoded, manifest.Root, manifest.Options()...)
	require.NoError(t, err)
	assert.Equal(t, data, decoded.Bytes())

	// The manifest's length also bounds what a stream may declare.
	bigger := patternData(9000)
	biggerTree := NewTree(bigger, ChunkSize(512))
	var biggerEncoded bytes.Buffer
	require.NoError(t, biggerTree.Encode(&biggerEncoded, bytes.NewReader(bigger)))
	_, err = Decode(io.Discard, &biggerEncoded, biggerTree.Root(), manifest.Options()...)
	require.ErrorIs(t, err, ErrLengthMismatch)
}
