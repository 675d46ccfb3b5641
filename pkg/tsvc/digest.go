package tsvc

import "golang.org/x/crypto/ripemd160"

// DigestSize is the fixed width of a record digest (spec §3, §6, §8). It is
// exactly the RIPEMD-160 output size, which is why computeDigest below can use
// that hash directly with no truncation or padding.
const DigestSize = ripemd160.Size // 20

// Digest identifies a record within a namespace.
type Digest [DigestSize]byte

// IsZero reports whether d has never been set.
func (d Digest) IsZero() bool { return d == Digest{} }

// computeDigest implements spec §6: digest20(set_bytes ++ key_bytes) using
// the storage layer's configured digest function. The teacher's go.mod pulls
// in golang.org/x/crypto for SASL; this module repurposes its RIPEMD-160
// implementation for the same byte-width 20-byte digest the wire protocol's
// DIGEST_RIPE field promises.
func computeDigest(set, key []byte) Digest {
	h := ripemd160.New()
	h.Write(set)
	h.Write(key)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// PartitionID derives a partition index from a digest, folding the whole
// digest modulo the partition count. Exported so that callers outside this
// package — the aggregation cursor's open() policy, spec §4.3 — derive a
// partition id from a digest the same way the dispatcher does, rather than
// keeping a second copy of the hash in sync by hand.
func PartitionID(d Digest, nPartitions int) int {
	if nPartitions <= 0 {
		mustNotHappen("PartitionID: nPartitions=%d", nPartitions)
	}
	var acc uint32
	for _, b := range d {
		acc = acc*131 + uint32(b)
	}
	return int(acc % uint32(nPartitions))
}
