// Package commit implements C8: producing the leaf streams the external
// Merkle builder and Pedersen-MD hasher need for CommD, CommC and CommR,
// plus the CommR combinator itself. The tree and hash internals are
// deliberately out of scope (spec.md §4.7) — this package only specifies
// leaf-production order and calls the injected TreeBuilder/ColumnHasher/
// PedersenMD to do the actual committing.
package commit

import (
	"fmt"

	"github.com/nicola/r2/encode"
	"github.com/nicola/r2/ioengine"
)

// NodeSize is the fixed width, in bytes, of one node slot.
const NodeSize = 32

// Leaf is one Merkle-tree leaf's worth of bytes.
type Leaf = [NodeSize]byte

// Tree is whatever the external builder returns: a handle a caller can pull
// a root (and, eventually, inclusion proofs) out of. This package never
// inspects it beyond Root.
type Tree interface {
	Root() [32]byte
}

// TreeBuilder is the injected Merkle-tree construction service (spec.md's
// explicit non-goal): it owns the arity, the hash used at internal nodes,
// and any padding scheme. Build must not retain leaves past the call.
type TreeBuilder interface {
	Build(leaves []Leaf) (Tree, error)
}

// ColumnHasher is the injected Pedersen-MD hasher used to collapse one
// node's per-layer bytes into a single CommC leaf. parts is layerBytes in
// layer order, 0..Layers-1, with no padding between them.
type ColumnHasher interface {
	HashColumn(parts []Leaf) [32]byte
}

// PedersenMD combines the two halves of CommR. It is the same construction
// ColumnHasher uses internally, exposed separately because CommR's two
// operands are roots, not node bytes.
type PedersenMD func(commC, commRLast [32]byte) [32]byte

// Single builds the Merkle tree whose leaves are the NODES nodes of one
// layer, read through io. layer -1 is the original plaintext (CommD);
// Layers-1 is the final encoded layer (CommR_last). Every leaf is parsed
// through the same canonical field decoding the encoder uses (spec.md
// §4.7), so a leaf with its reserved top bits set reports a *DomainError
// rather than silently committing to garbage.
func Single(io *ioengine.Engine, nodes, layer int, builder TreeBuilder) (Tree, error) {
	leaves := make([]Leaf, nodes)
	for v := 0; v < nodes; v++ {
		r, err := io.ReadNode(v, layer)
		if err != nil {
			return nil, fmt.Errorf("commit: single(layer=%d): read node %d: %w", layer, v, err)
		}
		leaf, err := encode.DecodeLeaf(r.Data)
		if err != nil {
			return nil, fmt.Errorf("commit: single(layer=%d): node %d: %w", layer, v, err)
		}
		leaves[v] = leaf
	}

	tree, err := builder.Build(leaves)
	if err != nil {
		return nil, fmt.Errorf("commit: single(layer=%d): build tree: %w", layer, err)
	}
	return tree, nil
}

// Columns builds the Merkle tree for CommC: leaf v is ColumnHasher's
// Pedersen-MD digest of node v's bytes across every encoded layer,
// 0..layers-1, in layer order. Unlike Single, column bytes are not parsed
// as field elements — the hash runs over the raw encoded bytes exactly as
// stored (spec.md §4.7 specifies no decoding step for columns).
func Columns(io *ioengine.Engine, nodes, layers int, hasher ColumnHasher, builder TreeBuilder) (Tree, error) {
	leaves := make([]Leaf, nodes)
	column := make([]Leaf, layers)

	for v := 0; v < nodes; v++ {
		for l := 0; l < layers; l++ {
			r, err := io.ReadNode(v, l)
			if err != nil {
				return nil, fmt.Errorf("commit: columns: read node %d layer %d: %w", v, l, err)
			}
			column[l] = r.Data
		}
		leaves[v] = hasher.HashColumn(column)
	}

	tree, err := builder.Build(leaves)
	if err != nil {
		return nil, fmt.Errorf("commit: columns: build tree: %w", err)
	}
	return tree, nil
}

// CombineCommR computes CommR = PedersenMD(CommC, CommR_last), the final
// combinator spec.md §4.7 specifies over the two prior roots.
func CombineCommR(commC, commRLast [32]byte, combine PedersenMD) [32]byte {
	return combine(commC, commRLast)
}

// Challenge deterministically derives a (layer, node) pair to open for a
// proof-of-replication challenge, from a public seed and challenge index.
// It is a plain function of public inputs — no secret key or second
// elliptic-curve group is involved, so it is built directly on the
// package's own Hasher plan rather than a VRF or OPRF (see DESIGN.md).
func Challenge(hasher encode.Hasher, seed [32]byte, index uint64, nodes, layers int) (layer, node int) {
	state := hasher.New(seed)
	var idx [8]byte
	for i := range idx {
		idx[i] = byte(index >> (8 * i))
	}
	state.Absorb(idx[:])
	digest := state.Finalize()

	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(digest[i])
		lo = lo<<8 | uint64(digest[i+8])
	}

	node = int(hi % uint64(nodes))
	layer = int(lo % uint64(layers))
	return layer, node
}
