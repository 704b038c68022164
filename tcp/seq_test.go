package tcp

import "testing"

func TestSeqLessThan(t *testing.T) {
	cases := []struct {
		a, b Value
		want bool
	}{
		{0, 1, true},
		{1, 0, false},
		{0, 0, false},
		{0xFFFFFFFF, 0, true},
		{0, 0xFFFFFFFF, false},
	}
	for _, c := range cases {
		if got := LessThan(c.a, c.b); got != c.want {
			t.Errorf("LessThan(%d, %d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSeqAddWraps(t *testing.T) {
	v := Add(0xFFFFFFFE, 4)
	if v != 2 {
		t.Errorf("Add wraparound = %d, want 2", v)
	}
}

func TestSeqInWindow(t *testing.T) {
	if !InWindow(100, 100, 50) {
		t.Error("start of window should be in window")
	}
	if InWindow(150, 100, 50) {
		t.Error("one past the end of window should not be in window")
	}
	if !InWindow(149, 100, 50) {
		t.Error("last octet of window should be in window")
	}
}

func TestSizeof(t *testing.T) {
	if got := Sizeof(100, 150); got != 50 {
		t.Errorf("Sizeof(100, 150) = %d, want 50", got)
	}
}
