package r2

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/nicola/r2/encode"
	"github.com/nicola/r2/graph"
)

// leToFrElement mirrors encode.decodeField's little-endian-to-field-element
// conversion, duplicated here because that helper is unexported.
func leToFrElement(buf []byte) fr.Element {
	var be [NodeSize]byte
	for i := 0; i < NodeSize; i++ {
		be[i] = buf[NodeSize-1-i]
	}
	var e fr.Element
	e.SetBytes(be[:])
	return e
}

func frElementToLE(e fr.Element) [NodeSize]byte {
	be := e.Bytes()
	var out [NodeSize]byte
	for i := 0; i < NodeSize; i++ {
		out[i] = be[NodeSize-1-i]
	}
	return out
}

func tinySeed() [7]uint32 { return [7]uint32{0, 1, 2, 3, 4, 5, 6} }

// newLayeredFile allocates a zero-filled layered-data file of the right size
// for params; layer -1 (the plaintext) is all zero, matching spec.md §8
// scenario 1's "original data = 256 zero bytes" for NODES=8.
func newLayeredFile(t *testing.T, params Parameters) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "replica.bin")
	if err := os.WriteFile(path, make([]byte, params.LayeredDataBytes()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReplicateTinyScenario(t *testing.T) {
	params, err := NewParameters(8, 2, tinySeed())
	if err != nil {
		t.Fatal(err)
	}

	dataPath := newLayeredFile(t, params)
	cacheDir := t.TempDir()

	var replicaID [32]byte // all zero, per spec.md §8 scenario 1

	hasher := encode.TranscriptHasher{}
	if err := Replicate(context.Background(), params, replicaID, dataPath, cacheDir, hasher, nil); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(dataPath)
	if err != nil {
		t.Fatal(err)
	}

	sector := int(params.SectorBytes())
	layer0 := raw[1*sector : 2*sector]
	layer1 := raw[2*sector : 3*sector]

	// layer 0 byte 0 equals Hash(replica_id) mod p encoded: node 0 has no
	// parents on the forward (even) layer, and its current bytes are zero.
	// The key is read with the top two bits of its last byte cleared.
	wantKey0 := hasher.New(replicaID).Finalize()
	wantKey0[NodeSize-1] &= 0x3f
	var gotNode0 [NodeSize]byte
	copy(gotNode0[:], layer0[0:NodeSize])
	if gotNode0 != wantKey0 {
		t.Fatalf("layer 0 node 0 = %x, want bare replica-id key %x", gotNode0, wantKey0)
	}

	// layer 1 byte 0 equals (layer0[0] + Hash(replica_id, reverse-parents(0))) mod p.
	g, err := graph.Build(params.Nodes, params.BaseParents, params.ExpParents, params.Seed)
	if err != nil {
		t.Fatal(err)
	}
	view := g.Reverse(0)

	state := hasher.New(replicaID)
	for _, p := range view.Parents {
		state.Absorb(layer0[p*NodeSize : (p+1)*NodeSize])
	}
	key := state.Finalize()
	key[NodeSize-1] &= 0x3f

	rElem := leToFrElement(layer0[0:NodeSize])
	keyElem := leToFrElement(key[:])
	var sum fr.Element
	sum.Add(&rElem, &keyElem)
	wantNode0Layer1 := frElementToLE(sum)

	var gotNode0Layer1 [NodeSize]byte
	copy(gotNode0Layer1[:], layer1[0:NodeSize])
	if gotNode0Layer1 != wantNode0Layer1 {
		t.Fatalf("layer 1 node 0 = %x, want %x", gotNode0Layer1, wantNode0Layer1)
	}
}

func TestReplicateDeterministic(t *testing.T) {
	params, err := NewParameters(16, 3, tinySeed())
	if err != nil {
		t.Fatal(err)
	}

	var replicaID [32]byte
	replicaID[0] = 0x55

	run := func() []byte {
		dataPath := newLayeredFile(t, params)
		cacheDir := t.TempDir()
		if err := Replicate(context.Background(), params, replicaID, dataPath, cacheDir, encode.Blake2sHasher{}, nil); err != nil {
			t.Fatal(err)
		}
		raw, err := os.ReadFile(dataPath)
		if err != nil {
			t.Fatal(err)
		}
		return raw
	}

	a := run()
	b := run()
	if string(a) != string(b) {
		t.Fatal("two replications of identical inputs produced different layered data")
	}
}

func TestReplicateRejectsBadParameters(t *testing.T) {
	params := Parameters{Nodes: 1, Layers: 2, BaseParents: 5, ExpParents: 8}
	err := Replicate(context.Background(), params, [32]byte{}, "", "", encode.Blake2sHasher{}, nil)
	if err == nil {
		t.Fatal("expected a ConfigError for Nodes < 4")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
}
