// Package aggr implements the streaming aggregation engine: a cursor over
// record-identifier batches that opens each record under a partition
// reservation, pre-filters it, and feeds survivors to an external scripting
// runtime through a small input/output stream adapter (spec §4.3).
package aggr

import (
	"github.com/kvnode/tsvc/pkg/aval"
	"github.com/kvnode/tsvc/pkg/tsvc"
)

// StreamStatus is the outcome an output-write hook or a scripting runtime
// reports back through the pipeline.
type StreamStatus uint8

const (
	StreamOK StreamStatus = iota
	StreamErr
)

// HookVector is the policy-dispatch contract from spec §3/§6: the engine
// never decides reservation or error policy itself, it always asks the
// caller through these five hooks.
type HookVector interface {
	// ReservePartition mirrors the source's ptn_reserve: acquire a
	// reservation for (namespace, partitionID), writing into scratch and
	// returning it, or nil on failure.
	ReservePartition(userData any, namespace string, partitionID int, scratch *tsvc.Reservation) *tsvc.Reservation

	// ReleasePartition mirrors ptn_release.
	ReleasePartition(userData any, rsv *tsvc.Reservation)

	// SetError records a terminal error code against the call.
	SetError(userData any, code tsvc.ResultCode)

	// PreCheck is the pre-filter; returning false rejects the open record
	// without it ever reaching the scripting runtime. A HookVector that
	// leaves this hook trivial (always true) matches the source's
	// "if not defined, pre_check succeeds" default.
	PreCheck(userData any, record aval.Value, secondaryKey aval.Value) bool

	// OutputWrite delegates a value written by the scripting runtime to
	// the caller; its return value is the stream status reported back to
	// the runtime.
	OutputWrite(userData any, value aval.Value) StreamStatus
}

// Call bundles a module/function reference, its argument list, the hook
// vector, and opaque user data (spec §3 "Aggregation Call").
type Call struct {
	Module   string
	Function string
	Args     []aval.Value
	Hooks    HookVector
	UserData any
}
