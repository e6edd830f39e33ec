package source

import (
	"encoding/hex"
	"hash"
	"hash/fnv"

	"golang.org/x/crypto/blake2b"
)

// signatureHasher fingerprints bundle content for change detection.
type signatureHasher struct {
	hash.Hash
}

func newSignatureHasher() *signatureHasher {
	h, _ := blake2b.New256(nil)
	return &signatureHasher{Hash: h}
}

func (h *signatureHasher) Hex() string {
	return hex.EncodeToString(h.Sum(nil))
}

// ContentSignature fingerprints a byte slice the same way imports do.
func ContentSignature(data []byte) string {
	h := newSignatureHasher()
	h.Write(data)
	return h.Hex()
}

// DeriveUID produces a stable identity for a locally imported bundle:
// the content hash when content is available, else the display name,
// else the import path. Collisions across unrelated files are possible;
// the engine treats the result as best-effort, not a uniqueness
// guarantee.
func DeriveUID(content []byte, name, path string) int64 {
	h := fnv.New64a()
	switch {
	case len(content) > 0:
		h.Write(content)
	case name != "":
		h.Write([]byte(name))
	default:
		h.Write([]byte(path))
	}
	// positive, and never the reserved default uid
	uid := int64(h.Sum64() >> 1)
	if uid == 0 {
		uid = 1
	}
	return uid
}
