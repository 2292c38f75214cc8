package eflomal

// Shared bit-mixing finalizers, used by both the PRNG (rand.go) and the
// compact count map (natmap.go). Single-round xxhash-style finalizer.

func mix32(x uint32) uint32 {
	x = 0x85ebca6b * (x ^ (x >> 16))
	x = 0xc2b2ae35 * (x ^ (x >> 13))
	return x ^ (x >> 16)
}

func mix64(x uint64) uint64 {
	x = (x ^ (x >> 33)) * 14029467366897019727
	x = (x ^ (x >> 29)) * 1609587929392839161
	return x ^ (x >> 32)
}
