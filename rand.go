package eflomal

// 64-bit xorshift* PRNG and the sampling primitives built on top of it:
// derived uniforms, bounded integers, cumulative-categorical sampling, and
// shape-parameterized Gamma/Dirichlet draws (Cheng 1977 for alpha >= 1,
// Martin-Liu 2013 for alpha << 1).

import "math"

// RandState is one xorshift* generator state. The zero value is not a
// valid state: seed with NewRandState or split an existing state.
type RandState uint64

// NewRandState seeds a generator from a raw 64-bit seed (e.g. read from
// /dev/urandom by the caller).
func NewRandState(seed uint64) RandState {
	if seed == 0 {
		seed = 0x9e3779b97f4a7c15
	}
	return RandState(seed)
}

func (s *RandState) step() {
	x := uint64(*s)
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	x *= 2685821657736338717
	*s = RandState(x)
}

// Split advances s once and returns an independent child state derived by
// avalanche-mixing the new state. Callers that need deterministic,
// reproducible parallelism must serialize calls to Split under a mutex and
// always acquire them in the same order (see driver.go).
func (s *RandState) Split() RandState {
	s.step()
	return RandState(mix64(uint64(*s)))
}

// Uniform64 returns a float64 uniform on [0, 1).
func (s *RandState) Uniform64() float64 {
	for {
		s.step()
		// States within rounding distance of 2^64 map to exactly 1; draw again.
		if u := float64(uint64(*s)-1) / float64(^uint64(0)); u < 1 {
			return u
		}
	}
}

// Uniform32 returns a float32 uniform on [0, 1).
func (s *RandState) Uniform32() float32 {
	for {
		s.step()
		// States within rounding distance of 2^64 map to exactly 1; draw again.
		if u := float32(uint64(*s)-1) / float32(^uint64(0)); u < 1 {
			return u
		}
	}
}

// BoundedBiased returns a value in [0, n) using a biased modulo reduction.
// Faster than BoundedUnbiased; acceptable when n is small relative to
// 2^64, which holds for source sentence lengths (n <= MaxSentLen).
func (s *RandState) BoundedBiased(n uint32) uint32 {
	s.step()
	return uint32(uint64(*s) % uint64(n))
}

// BoundedUnbiased returns a value in [0, n) with no modulo bias, via
// rejection sampling.
func (s *RandState) BoundedUnbiased(n uint32) uint32 {
	max := uint64(0x100000000) - (uint64(0x100000000) % uint64(n))
	for {
		s.step()
		x := uint32(uint64(*s))
		if uint64(x) < max {
			return x % n
		}
	}
}

// CumulativeCategorical samples from an unnormalized cumulative
// distribution: p[i] is non-decreasing and p[len(p)-1] is the
// normalization constant. Draws u * p[len(p)-1] and returns the first i
// with p[i] >= u, else len(p)-1.
func (s *RandState) CumulativeCategorical(p []float32) int {
	u := s.Uniform32() * p[len(p)-1]
	for i := 0; i < len(p)-1; i++ {
		if p[i] >= u {
			return i
		}
	}
	return len(p) - 1
}

// Gamma draws an unnormalized Gamma(alpha, 1) sample for alpha >= 1, using
// Cheng's 1977 ratio-of-uniforms method on the log scale.
//
// R. C. H. Cheng (1977), "The Generation of Gamma Variables with
// Non-Integral Shape Parameter", JRSS Series C, Vol. 26, No. 1, pp. 71-75.
func (s *RandState) Gamma(alpha float64) float64 {
	a := 1.0 / math.Sqrt(2.0*alpha-1.0)
	b := alpha - math.Log(4.0)
	c := alpha + 1.0/a
	for {
		u1 := s.Uniform64()
		u2 := s.Uniform64()
		v := a * math.Log(u1/(1.0-u1))
		x := alpha * math.Exp(v)
		if b+c*v-x >= math.Log(u1*u1*u2) {
			return x
		}
	}
}

// LogGammaSmall draws log(x) for an unnormalized Gamma(alpha, 1) sample
// with alpha << 1, using the Martin-Liu 2013 rejection scheme.
//
// http://arxiv.org/pdf/1302.1884.pdf
func (s *RandState) LogGammaSmall(alpha float64) float64 {
	const e = 2.7182818284590452354
	lambda := (1.0 / alpha) - 1.0
	w := alpha / (e * (1.0 - alpha))
	r := 1.0 / (1.0 + w)

	for {
		u := s.Uniform64()
		var z float64
		if u <= r {
			z = -math.Log(u / r)
		} else {
			z = math.Log(s.Uniform64()) / lambda
		}
		h := math.Exp(-z - math.Exp(-z/alpha))
		var eta float64
		if z >= 0.0 {
			eta = math.Exp(-z)
		} else {
			eta = w * lambda * math.Exp(lambda*z)
		}
		if h > eta*s.Uniform64() {
			return -z / alpha
		}
	}
}

// gammaDispatch draws an unnormalized Gamma(alpha, 1) sample, using the
// small-alpha rejection path below 0.6 and Cheng's method otherwise. This
// is the elementwise primitive a Dirichlet draw is built from: a Dirichlet
// sample is just elementwise unnormalized Gammas (the caller divides by
// their sum, or — as the fertility model does — uses successive ratios
// directly without ever normalizing).
func (s *RandState) gammaDispatch(alpha float64) float64 {
	if alpha < 0.6 {
		return math.Exp(s.LogGammaSmall(alpha))
	}
	return s.Gamma(alpha)
}

// DirichletUnnormalized fills x with an elementwise-Gamma draw from
// Dirichlet(alpha); the result is unnormalized (the caller divides by the
// sum, or uses it directly as in the fertility-ratio construction of
// state.go). alpha and x are Count (float32) slices, matching the
// sufficient-statistic precision used throughout the sampler; the gamma
// draws themselves are computed in float64 for numerical stability and
// truncated on the way out.
func (s *RandState) DirichletUnnormalized(alpha, x []Count) {
	for i := range alpha {
		x[i] = Count(s.gammaDispatch(float64(alpha[i])))
	}
}
