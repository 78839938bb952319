package arena

import "testing"

func TestAllocStability(t *testing.T) {
	a := New[int](2) // tiny slab size to force a grow during the test
	var ptrs []*int
	for i := 0; i < 10; i++ {
		p := a.Alloc()
		*p = i
		ptrs = append(ptrs, p)
	}
	for i, p := range ptrs {
		if *p != i {
			t.Fatalf("ptrs[%d] = %d, want %d (pointer identity not stable across grow)", i, *p, i)
		}
	}
	if a.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", a.Len())
	}
}

func TestAllocZeroValue(t *testing.T) {
	type pair struct{ x, y int }
	a := New[pair](0)
	p := a.Alloc()
	if p.x != 0 || p.y != 0 {
		t.Fatalf("Alloc() returned non-zero value: %+v", *p)
	}
}

func TestBytesGrowsWithAllocations(t *testing.T) {
	a := New[int](4)
	if a.Bytes() != 0 {
		t.Fatalf("Bytes() = %d before any Alloc, want 0", a.Bytes())
	}
	a.Alloc()
	if a.Bytes() <= 0 {
		t.Fatalf("Bytes() = %d after one Alloc, want > 0", a.Bytes())
	}
}

func TestNonPositiveSlabSizeFallsBackToDefault(t *testing.T) {
	a := New[int](0)
	if a.slabSize != defaultSlabNodes {
		t.Fatalf("slabSize = %d, want default %d", a.slabSize, defaultSlabNodes)
	}
}
