package tsvc

import "testing"

func TestComputeDigestIsDeterministicAnd20Bytes(t *testing.T) {
	d1 := computeDigest([]byte("myset"), []byte("mykey"))
	d2 := computeDigest([]byte("myset"), []byte("mykey"))

	if d1 != d2 {
		t.Fatalf("computeDigest is not deterministic: %x != %x", d1, d2)
	}
	if len(d1) != DigestSize {
		t.Fatalf("digest size = %d, want %d", len(d1), DigestSize)
	}
}

func TestComputeDigestDistinguishesSetAndKey(t *testing.T) {
	a := computeDigest([]byte("set-a"), []byte("key"))
	b := computeDigest([]byte("set-b"), []byte("key"))
	if a == b {
		t.Fatalf("different sets produced the same digest")
	}
}

func TestPartitionIDInRange(t *testing.T) {
	d := computeDigest(nil, []byte("k"))
	for _, n := range []int{1, 16, 4096} {
		pid := PartitionID(d, n)
		if pid < 0 || pid >= n {
			t.Fatalf("PartitionID(%v, %d) = %d, out of range", d, n, pid)
		}
	}
}

func TestPartitionIDZeroPartitionsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero partitions")
		}
	}()
	PartitionID(Digest{}, 0)
}
