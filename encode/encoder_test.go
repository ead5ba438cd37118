package encode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nicola/r2/graph"
	"github.com/nicola/r2/ioengine"
)

func testSeed() [7]uint32 { return [7]uint32{0, 1, 2, 3, 4, 5, 6} }

func newEngine(t *testing.T, nodes int) *ioengine.Engine {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.bin")
	// Two blocks: layer -1 (plaintext, all zero) and layer 0.
	if err := os.WriteFile(path, make([]byte, 2*nodes*NodeSize), 0o644); err != nil {
		t.Fatal(err)
	}
	io, err := ioengine.Open(path, nodes, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(io.Close)
	return io
}

func readNode(t *testing.T, io *ioengine.Engine, v, layer int) [NodeSize]byte {
	t.Helper()
	io.Prefetch([14]int{v, v, v, v, v, v, v, v, v, v, v, v, v, v}, layer)
	select {
	case r := <-io.Responses():
		return r.Data
	case <-io.Done():
		t.Fatalf("worker exited: %v", io.Err())
	}
	panic("unreachable")
}

func TestEncodeNodeZeroAbsorbsOnlyReplicaID(t *testing.T) {
	g, err := graph.Build(8, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}
	io := newEngine(t, 8)

	var replicaID [32]byte
	for i := range replicaID {
		replicaID[i] = byte(i)
	}

	enc := New(TranscriptHasher{}, replicaID)
	view := g.View(0, 0)
	if err := enc.EncodeNode(io, view, 0); err != nil {
		t.Fatal(err)
	}
	if err := io.Flush(); err != nil {
		t.Fatal(err)
	}

	got := readNode(t, io, 0, 0)

	wantKey := TranscriptHasher{}.New(replicaID).Finalize()
	wantKey[NodeSize-1] &= topBitsMask
	// node 0's current bytes are all zero, so r = 0 and encoded = key (with
	// its top two bits cleared, as EncodeNode reads it).
	if got != wantKey {
		t.Fatalf("layer0 node0 = %x, want bare replica-id key %x", got, wantKey)
	}
}

func TestEncodeNodeDeterministic(t *testing.T) {
	g, err := graph.Build(16, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}

	var replicaID [32]byte
	replicaID[0] = 0xab

	run := func() [NodeSize]byte {
		io := newEngine(t, 16)
		enc := New(TranscriptHasher{}, replicaID)
		for v := 0; v < 16; v++ {
			if err := enc.EncodeNode(io, g.View(v, 0), 0); err != nil {
				t.Fatal(err)
			}
		}
		if err := io.Flush(); err != nil {
			t.Fatal(err)
		}
		return readNode(t, io, 7, 0)
	}

	a := run()
	b := run()
	if a != b {
		t.Fatalf("encoding is not deterministic: %x != %x", a, b)
	}
}

func TestEncodeNodePaddingIsLoadBearing(t *testing.T) {
	g, err := graph.Build(16, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}

	// Pick the first node past 0 and 1 whose parents are absorbed (its first
	// parent slot is not itself). That is node 2: its base parents all lie
	// in {0, 1} and its filtered expander slots are zero padding, so it
	// reads node 0 and mutating node 0's bytes before encoding changes what
	// it absorbs.
	var target = -1
	for v := 2; v < 16; v++ {
		view := g.Forward(v)
		if view.Parents[0] == v {
			continue
		}
		target = v
		break
	}
	if target < 0 {
		t.Skip("no suitable node found in this graph instance")
	}

	var replicaID [32]byte

	runWithNodeZero := func(seedByte byte) [NodeSize]byte {
		io := newEngine(t, 16)
		var data [NodeSize]byte
		data[0] = seedByte
		io.WriteNode(0, 0, data)
		if err := io.Flush(); err != nil {
			t.Fatal(err)
		}

		enc := New(TranscriptHasher{}, replicaID)
		if err := enc.EncodeNode(io, g.Forward(target), 0); err != nil {
			t.Fatal(err)
		}
		if err := io.Flush(); err != nil {
			t.Fatal(err)
		}
		return readNode(t, io, target, 0)
	}

	a := runWithNodeZero(0x00)
	b := runWithNodeZero(0x01)
	if a == b {
		t.Fatalf("changing node 0's bytes did not change node %d's encoding; padding absorption may be broken", target)
	}
}

func TestEncodeNodeRejectsUnmaskedBytes(t *testing.T) {
	g, err := graph.Build(8, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}
	io := newEngine(t, 8)

	var bad [NodeSize]byte
	bad[NodeSize-1] = 0xff // top two bits set
	io.WriteNode(0, 0, bad)
	if err := io.Flush(); err != nil {
		t.Fatal(err)
	}

	var replicaID [32]byte
	enc := New(TranscriptHasher{}, replicaID)
	err = enc.EncodeNode(io, g.View(0, 0), 0)
	if err == nil {
		t.Fatal("expected a DomainError for unmasked top bits")
	}
	if _, ok := err.(*DomainError); !ok {
		t.Fatalf("expected *DomainError, got %T: %v", err, err)
	}
}
