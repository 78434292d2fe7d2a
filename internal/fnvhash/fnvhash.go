// Package fnvhash implements the FNV-like rolling hash spec.md §4.5
// specifies for the registry's coalescence maps, preserved verbatim here
// for on-disk queue key derivation where cross-run determinism is
// observable (pkg/queue/boltqueue). The in-memory registry itself uses a
// plain Go map, which spec.md explicitly permits substituting.
package fnvhash

// Sum computes the hash over b: seed 0, per-byte
// v = (v + b) + (v << 10); v ^= v >> 6, followed by a final avalanche
// mix. A zero result is mapped to 1 since 0 is reserved to mean "empty
// slot" in the original's closed-hash tables.
func Sum(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = (v + uint32(c)) + (v << 10)
		v ^= v >> 6
	}
	v += v << 3
	v ^= v >> 11
	v += v << 15

	if v == 0 {
		return 1
	}
	return v
}

// Key hashes a (function, unique) coalescence pair deterministically. The
// queue backends do not use it: they key records by job handle.
func Key(function, unique string) uint32 {
	buf := make([]byte, 0, len(function)+1+len(unique))
	buf = append(buf, function...)
	buf = append(buf, 0)
	buf = append(buf, unique...)
	return Sum(buf)
}
