package graph

import "testing"

func TestBucketSampleSpecialCases(t *testing.T) {
	seed := testSeed()
	if got := bucketSample(0, 5, seed); got != [5]int{} {
		t.Errorf("bucketSample(0) = %v, want all zero", got)
	}
	if got := bucketSample(1, 5, seed); got != [5]int{} {
		t.Errorf("bucketSample(1) = %v, want all zero", got)
	}
}

func TestBucketSampleDeterministic(t *testing.T) {
	seed := testSeed()
	for v := 2; v < 64; v++ {
		a := bucketSample(v, 5, seed)
		b := bucketSample(v, 5, seed)
		if a != b {
			t.Fatalf("bucketSample(%d) not deterministic: %v != %v", v, a, b)
		}
	}
}

func TestBucketSampleInRangeAndSorted(t *testing.T) {
	seed := testSeed()
	for v := 2; v < 512; v++ {
		parents := bucketSample(v, 5, seed)
		for k, p := range parents {
			if p >= v || p < 0 {
				t.Fatalf("bucketSample(%d)[%d] = %d, out of [0,%d)", v, k, p, v)
			}
			if k > 0 && parents[k-1] > p {
				t.Fatalf("bucketSample(%d) = %v not sorted ascending", v, parents)
			}
		}
	}
}

func TestBucketSampleDifferentSeeds(t *testing.T) {
	a := bucketSample(100, 5, [7]uint32{0, 1, 2, 3, 4, 5, 6})
	b := bucketSample(100, 5, [7]uint32{6, 5, 4, 3, 2, 1, 0})
	if a == b {
		t.Fatal("different seeds produced identical parent sets")
	}
}
