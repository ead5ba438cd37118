package transcript

import (
	"bytes"
	"testing"
)

func TestDeriveDeterministic(t *testing.T) {
	a := New("test")
	a.Mix("data", []byte("hello"))
	outA := a.Derive("out", nil, 32)

	b := New("test")
	b.Mix("data", []byte("hello"))
	outB := b.Derive("out", nil, 32)

	if !bytes.Equal(outA, outB) {
		t.Fatalf("Derive not deterministic: %x != %x", outA, outB)
	}
}

func TestDeriveSensitiveToLabel(t *testing.T) {
	a := New("alpha")
	a.Mix("data", []byte("hello"))

	b := New("beta")
	b.Mix("data", []byte("hello"))

	if bytes.Equal(a.Derive("out", nil, 32), b.Derive("out", nil, 32)) {
		t.Fatal("different init labels produced identical output")
	}
}

func TestDeriveSensitiveToMixedData(t *testing.T) {
	a := New("test")
	a.Mix("data", []byte("hello"))

	b := New("test")
	b.Mix("data", []byte("world"))

	if bytes.Equal(a.Derive("out", nil, 32), b.Derive("out", nil, 32)) {
		t.Fatal("different mixed data produced identical output")
	}
}

func TestDeriveChainsAcrossCalls(t *testing.T) {
	p := New("test")
	p.Mix("data", []byte("hello"))
	first := p.Derive("out", nil, 32)
	second := p.Derive("out", nil, 32)

	if bytes.Equal(first, second) {
		t.Fatal("successive Derive calls on the same protocol produced identical output")
	}
}

func TestDerivePanicsOnZeroLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero-length Derive")
		}
	}()
	New("test").Derive("out", nil, 0)
}

func TestCloneIndependence(t *testing.T) {
	p := New("test")
	p.Mix("data", []byte("hello"))

	clone := p.Clone()
	p.Mix("more", []byte("data"))

	out1 := clone.Derive("out", nil, 32)

	clone2 := New("test")
	clone2.Mix("data", []byte("hello"))
	out2 := clone2.Derive("out", nil, 32)

	if !bytes.Equal(out1, out2) {
		t.Fatal("clone diverged from an equivalent freshly-built protocol")
	}
}
