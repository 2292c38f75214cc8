package eflomal

import (
	"math"
	"testing"
)

func TestRandStateDeterministic(t *testing.T) {
	a := NewRandState(42)
	b := NewRandState(42)
	for i := 0; i < 100; i++ {
		x, y := a.Uniform64(), b.Uniform64()
		if x != y {
			t.Fatalf("draw %d: expected equal streams; got %g and %g", i, x, y)
		}
	}
}

func TestRandStateZeroSeed(t *testing.T) {
	s := NewRandState(0)
	if s == 0 {
		t.Fatal("expected NewRandState(0) to avoid the zero state")
	}
}

func TestUniformRange(t *testing.T) {
	s := NewRandState(1)
	for i := 0; i < 10000; i++ {
		if u := s.Uniform64(); u < 0 || u >= 1 {
			t.Fatalf("Uniform64() out of range: %g", u)
		}
		if u := s.Uniform32(); u < 0 || u >= 1 {
			t.Fatalf("Uniform32() out of range: %g", u)
		}
	}
}

func TestBoundedBiasedRange(t *testing.T) {
	s := NewRandState(7)
	for i := 0; i < 10000; i++ {
		if x := s.BoundedBiased(5); x >= 5 {
			t.Fatalf("BoundedBiased(5) out of range: %d", x)
		}
	}
}

func TestBoundedUnbiasedRange(t *testing.T) {
	s := NewRandState(7)
	for i := 0; i < 10000; i++ {
		if x := s.BoundedUnbiased(5); x >= 5 {
			t.Fatalf("BoundedUnbiased(5) out of range: %d", x)
		}
	}
}

func TestSplitIndependence(t *testing.T) {
	root := NewRandState(123)
	c1 := root.Split()
	c2 := root.Split()
	if c1 == c2 {
		t.Error("expected two successive Split() calls to differ")
	}
}

func TestCumulativeCategorical(t *testing.T) {
	s := NewRandState(9)
	p := []float32{1, 1, 3} // cumulative: bucket 0 has mass 1, bucket 1 has mass 0, bucket 2 has mass 2
	counts := make([]int, len(p))
	for i := 0; i < 10000; i++ {
		counts[s.CumulativeCategorical(p)]++
	}
	if counts[1] != 0 {
		t.Errorf("expected bucket 1 (zero mass) never chosen; got %d draws", counts[1])
	}
	if counts[0] == 0 || counts[2] == 0 {
		t.Errorf("expected buckets 0 and 2 to each be chosen at least once; got %v", counts)
	}
}

func TestCumulativeCategoricalFallsThrough(t *testing.T) {
	s := NewRandState(9)
	p := []float32{0, 0, 1}
	for i := 0; i < 100; i++ {
		if got := s.CumulativeCategorical(p); got != 2 {
			t.Fatalf("expected draw to fall through to last bucket; got %d", got)
		}
	}
}

func TestGammaMean(t *testing.T) {
	s := NewRandState(55)
	const alpha = 3.0
	var sum float64
	const n = 20000
	for i := 0; i < n; i++ {
		sum += s.Gamma(alpha)
	}
	mean := sum / n
	if math.Abs(mean-alpha) > 0.15 {
		t.Errorf("expected Gamma(%g) mean close to %g; got %g", alpha, alpha, mean)
	}
}

func TestLogGammaSmallMean(t *testing.T) {
	s := NewRandState(99)
	const alpha = 0.1
	var sum float64
	const n = 20000
	for i := 0; i < n; i++ {
		sum += math.Exp(s.LogGammaSmall(alpha))
	}
	mean := sum / n
	if math.Abs(mean-alpha) > 0.05 {
		t.Errorf("expected LogGammaSmall(%g) mean close to %g; got %g", alpha, alpha, mean)
	}
}

func TestDirichletUnnormalizedShape(t *testing.T) {
	s := NewRandState(3)
	alpha := []Count{1, 1, 1}
	x := make([]Count, 3)
	s.DirichletUnnormalized(alpha, x)
	for i, v := range x {
		if v < 0 {
			t.Errorf("expected x[%d] >= 0; got %g", i, v)
		}
	}
}
