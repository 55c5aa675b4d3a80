package shardedavglfu

import "testing"

func TestRoutingStable(t *testing.T) {
	c := New[int](40, 4, 2)
	c.Put("x", 1)
	if !c.Contains("x") {
		t.Fatal("expected x present after put")
	}
	c.Remove("x")
	if c.Contains("x") {
		t.Fatal("x should be removed")
	}
}

func TestAggregateLen(t *testing.T) {
	c := New[int](40, 4, 2)
	for i := 0; i < 20; i++ {
		c.Put(string(rune('a'+i)), i)
	}
	if c.Len() == 0 {
		t.Fatal("expected non-zero aggregate length")
	}
}
