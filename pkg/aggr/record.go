package aggr

import (
	"github.com/kvnode/tsvc/pkg/aval"
	"github.com/kvnode/tsvc/pkg/tsvc"
)

// RecordHandle is the external per-record cloak from spec §2: Open acquires
// the per-record lock, Close releases it, Value exposes whatever field
// access the scripting runtime needs as an aval.Value. A single handle
// instance is reused across every record the cursor visits in one call,
// matching the source's single persistent udf_record/as_rec object
// (aobj.urec) that is repeatedly opened against a new digest and closed,
// rather than reallocated per record.
type RecordHandle interface {
	// Open acquires the per-record lock for (namespace, digest). A
	// non-nil error means the lock could not be acquired.
	Open(namespace string, digest tsvc.Digest) error

	// Close releases the per-record lock. It does not itself decrement any
	// external reference count the scripting runtime may be holding on a
	// previously-returned Value; observing the handle after Close is at
	// the scripting runtime's own risk (spec §4.3 close() policy).
	Close()

	// Value exposes the currently open record's fields as an opaque value
	// for the scripting runtime. Calling Value before a successful Open or
	// after Close is undefined.
	Value() aval.Value
}

// RecordIdentifier is one (primary_digest, secondary_key) pair (spec §3).
type RecordIdentifier struct {
	PrimaryDigest tsvc.Digest
	SecondaryKey  aval.Value
}

// RecordIDBatch is one ordered batch of identifiers (spec §3).
type RecordIDBatch struct {
	Items []RecordIdentifier
}

// BatchIterator is the "outer iterator" over a batch-of-batches (spec §3,
// §4.3). Release must be idempotent-safe to call once at cursor
// termination (spec §4.3 "Termination").
type BatchIterator interface {
	Next() (*RecordIDBatch, bool)
	Release()
}

// SliceBatchIterator adapts a plain slice of batches to BatchIterator; the
// common case when the record-identifier list is already materialized in
// memory (as opposed to streamed from a secondary-index scan cursor).
type SliceBatchIterator struct {
	batches []*RecordIDBatch
	idx     int
}

func NewSliceBatchIterator(batches []*RecordIDBatch) *SliceBatchIterator {
	return &SliceBatchIterator{batches: batches}
}

func (it *SliceBatchIterator) Next() (*RecordIDBatch, bool) {
	if it.idx >= len(it.batches) {
		return nil, false
	}
	b := it.batches[it.idx]
	it.idx++
	return b, true
}

func (it *SliceBatchIterator) Release() {
	it.batches = nil
}
