package b3tree

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidManifest means a serialized manifest could not be decoded or
// describes an impossible object.
var ErrInvalidManifest = errors.New("b3tree: invalid manifest")

// Manifest is the out-of-band description of a published object: the root
// chaining value plus the parameters a verifier needs to decode it. It is
// what a publisher signs and hands to peers; the encoded streams
// themselves stay untrusted.
type Manifest struct {
	Root      CV     `cbor:"root"`
	Length    uint64 `cbor:"length"`
	ChunkSize uint64 `cbor:"chunk_size"`
}

// Manifest returns the tree's manifest.
func (t *Tree) Manifest() Manifest {
	return Manifest{
		Root:      t.Root(),
		Length:    t.flat.length,
		ChunkSize: t.flat.chunkSize,
	}
}

// MarshalBinary encodes the manifest as CBOR.
func (m Manifest) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(m)
}

// UnmarshalBinary decodes a CBOR manifest and validates it.
func (m *Manifest) UnmarshalBinary(data []byte) error {
	var decoded Manifest
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if decoded.ChunkSize == 0 {
		return fmt.Errorf("%w: zero chunk size", ErrInvalidManifest)
	}
	*m = decoded
	return nil
}

// Options returns the decoder options matching the manifest, so a
// consumer can construct a compatible Decoder without further
// coordination. The manifest's length bounds what a stream may declare;
// the base hash is still the consumer's choice.
func (m Manifest) Options() []Option {
	return []Option{ChunkSize(int(m.ChunkSize)), MaxLength(m.Length)}
}
