// Package encode implements C6, the per-node encode loop: derive a key from
// the replica-id and a node's parents, add it to the node's current bytes
// modulo the BLS12-381 scalar field, and write the result back.
package encode

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/blake2s"

	"github.com/nicola/r2/internal/transcript"
)

// Hasher is the capability set spec.md §9 asks for: "new(replica_id) →
// state; absorb(bytes); finalize() → [u8;32]". A concrete Hasher is
// stateless and safe to share; each node's encode pass calls New to start a
// fresh State.
type Hasher interface {
	New(replicaID [32]byte) State
}

// State accumulates one node's parent bytes before producing its key.
type State interface {
	Absorb(data []byte)
	Finalize() [32]byte
}

// SHA256Hasher is the SHA-256 variant. New hashes the replica-id alone,
// with no node-index prefix; NewIndexed is the separate constructor that
// hashes the big-endian node index ahead of the replica-id. Encoder only
// ever calls New.
type SHA256Hasher struct{}

func (SHA256Hasher) New(replicaID [32]byte) State {
	h := sha256.New()
	h.Write(replicaID[:])
	return &sha256State{h: h}
}

// NewIndexed starts a SHA-256 state prefixed with the big-endian node
// index, per the Open Question's SHA-256 variant.
func (SHA256Hasher) NewIndexed(replicaID [32]byte, node uint64) State {
	h := sha256.New()
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], node)
	h.Write(idx[:])
	h.Write(replicaID[:])
	return &sha256State{h: h}
}

type sha256State struct{ h hash.Hash }

func (s *sha256State) Absorb(data []byte) { s.h.Write(data) }

func (s *sha256State) Finalize() [32]byte {
	var out [32]byte
	copy(out[:], s.h.Sum(nil))
	return out
}

// Blake2sHasher matches replicate.rs's Blake2s macros: replica-id only, no
// node-index prefix, ever.
type Blake2sHasher struct{}

func (Blake2sHasher) New(replicaID [32]byte) State {
	h, _ := blake2s.New256(nil)
	h.Write(replicaID[:])
	return &blake2sState{h: h}
}

type blake2sState struct{ h hash.Hash }

func (s *blake2sState) Absorb(data []byte) { s.h.Write(data) }

func (s *blake2sState) Finalize() [32]byte {
	var out [32]byte
	copy(out[:], s.h.Sum(nil))
	return out
}

// TranscriptHasher is the default variant: a domain-separated transcript
// (internal/transcript, itself grounded on thyrse's Protocol) in place of a
// raw hash.Hash. Like Blake2sHasher it never prefixes the node index.
type TranscriptHasher struct{}

func (TranscriptHasher) New(replicaID [32]byte) State {
	p := transcript.New("r2.encode.node")
	p.Mix("replica-id", replicaID[:])
	return &transcriptState{p: p}
}

type transcriptState struct{ p *transcript.Protocol }

func (s *transcriptState) Absorb(data []byte) { s.p.Mix("parent", data) }

func (s *transcriptState) Finalize() [32]byte {
	var out [32]byte
	s.p.Derive("key", out[:0], 32)
	return out
}
