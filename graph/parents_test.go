package graph

import "testing"

func TestViewPicksParityByLayer(t *testing.T) {
	g, err := Build(32, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}
	for v := 0; v < 32; v++ {
		if g.View(v, 0) != g.Forward(v) {
			t.Fatalf("View(%d, 0) should equal Forward(%d)", v, v)
		}
		if g.View(v, 1) != g.Reverse(v) {
			t.Fatalf("View(%d, 1) should equal Reverse(%d)", v, v)
		}
	}
}

func TestForwardViewOrder(t *testing.T) {
	g, err := Build(32, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}
	v := 20
	pv := g.Forward(v)
	bas := g.Bas(v)
	exp := g.Exp(v)
	for k := 0; k < 5; k++ {
		if pv.Parents[k] != bas[k] {
			t.Errorf("Forward(%d).Parents[%d] = %d, want bas[%d] = %d", v, k, pv.Parents[k], k, bas[k])
		}
	}
	for k := 0; k < 8; k++ {
		if pv.Parents[5+k] != exp[k] {
			t.Errorf("Forward(%d).Parents[%d] = %d, want exp[%d] = %d", v, 5+k, pv.Parents[5+k], k, exp[k])
		}
	}
}

func TestReverseBaseMirrorFormula(t *testing.T) {
	const nodes = 16
	g, err := Build(nodes, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}
	v := 5
	pv := g.Reverse(v)
	mirroredBas := g.Bas(nodes - v - 1)
	for k := 0; k < 5; k++ {
		want := nodes - mirroredBas[k] - 1
		if pv.Parents[k] != want {
			t.Errorf("Reverse(%d).Parents[%d] = %d, want %d", v, k, pv.Parents[k], want)
		}
	}
}

func TestReverseExpUsesReversedAdjacency(t *testing.T) {
	g, err := Build(32, 5, 8, testSeed())
	if err != nil {
		t.Fatal(err)
	}
	v := 10
	pv := g.Reverse(v)
	rev := g.ExpReversed(v)
	for k := 0; k < 8; k++ {
		if pv.Parents[5+k] != rev[k] {
			t.Errorf("Reverse(%d).Parents[%d] = %d, want exp_reversed[%d] = %d", v, 5+k, pv.Parents[5+k], k, rev[k])
		}
	}
}
