package aggr

import (
	"errors"

	"github.com/kvnode/tsvc/pkg/tsvc"
)

var errReservationFailed = errors.New("aggr: partition reservation failed")

// nPartitions is the fixed partition count used to derive a partition id
// from a digest (spec §4.3 open() policy: "compute partition id from the
// digest"). It matches the dispatcher's default.
const nPartitions = 4096

// cursor is the streaming cursor state from spec §4.3: "{ outer_iter,
// current_batch, offset_in_batch, record_open: bool, active_reservation }".
// Initial state is no batch loaded, no record open.
type cursor struct {
	namespace string
	call      *Call
	handle    RecordHandle
	logger    tsvc.Logger

	outer        BatchIterator
	currentBatch *RecordIDBatch
	offset       int

	recordOpen bool
	activeRsv  *tsvc.Reservation
}

func newCursor(namespace string, call *Call, outer BatchIterator, handle RecordHandle, logger tsvc.Logger) *cursor {
	if logger == nil {
		logger = tsvc.NopLogger()
	}
	return &cursor{namespace: namespace, call: call, outer: outer, handle: handle, logger: logger}
}

// nextID implements spec §4.3's next_id() policy: a current batch is
// loaded lazily and exhausted before the outer iterator advances again.
// Each record-identifier batch is visited in full, in index order, before
// moving to the next one — this is a mutually-exclusive if/else-if chain,
// not a sequential fall-through, so that loading a fresh batch and
// consuming its first element happen in the same call without skipping
// index 0 (see DESIGN.md for why this departs from a literal reading of
// the original source's get_next(), which has an off-by-one quirk that a
// straight port would reproduce as an out-of-bounds read).
func (c *cursor) nextID() (RecordIdentifier, bool) {
	if c.currentBatch == nil {
		b, ok := c.outer.Next()
		if !ok {
			return RecordIdentifier{}, false
		}
		c.currentBatch = b
		c.offset = 0
	} else if c.offset == len(c.currentBatch.Items) {
		b, ok := c.outer.Next()
		if !ok {
			return RecordIdentifier{}, false
		}
		c.currentBatch = b
		c.offset = 0
	}

	if len(c.currentBatch.Items) == 0 {
		// An empty batch in the sequence: treat as immediately exhausted
		// and recurse to the next one.
		c.currentBatch = nil
		return c.nextID()
	}

	item := c.currentBatch.Items[c.offset]
	c.offset++
	return item, true
}

// open implements spec §4.3's open(digest) policy.
func (c *cursor) open(digest tsvc.Digest) error {
	pid := tsvc.PartitionID(digest, nPartitions)

	var scratch tsvc.Reservation
	rsv := c.call.Hooks.ReservePartition(c.call.UserData, c.namespace, pid, &scratch)
	if rsv == nil {
		return errReservationFailed
	}

	if err := c.handle.Open(c.namespace, digest); err != nil {
		c.call.Hooks.ReleasePartition(c.call.UserData, rsv)
		return err
	}

	c.activeRsv = rsv
	c.recordOpen = true
	return nil
}

// close implements spec §4.3's close() policy: idempotent, and does not
// itself decrement any reference the scripting runtime holds on a value
// already handed out.
func (c *cursor) close() {
	if !c.recordOpen {
		return
	}
	c.handle.Close()
	c.call.Hooks.ReleasePartition(c.call.UserData, c.activeRsv)
	c.recordOpen = false
	c.activeRsv = nil
}

// terminate releases the outer iterator and closes any open record (spec
// §4.3 "Termination"). Safe to call multiple times.
func (c *cursor) terminate() {
	c.close()
	if c.outer != nil {
		c.outer.Release()
		c.outer = nil
	}
}

