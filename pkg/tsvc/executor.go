package tsvc

// Status is the quadruple a single-record executor returns (spec §2, §9).
// It encodes ownership transitions of two resources at once — the message
// buffer and the partition reservation — which is why spec §9 insists on a
// sum type rather than scoped destructors: IN_PROGRESS hands both resources
// to the executor asynchronously, something RAII-style cleanup cannot model.
type Status uint8

const (
	StatusDoneOK Status = iota
	StatusDoneErr
	StatusInProgress
	StatusWaiting
)

func (s Status) String() string {
	switch s {
	case StatusDoneOK:
		return "DONE_OK"
	case StatusDoneErr:
		return "DONE_ERR"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusWaiting:
		return "WAITING"
	default:
		return "INVALID_STATUS"
	}
}

// SingleRecordExecutor is the contract shared by the four sibling
// single-record engines (write, delete, udf, read; spec §2). What Start
// keeps depends on the returned Status: on IN_PROGRESS it owns both the
// message buffer and the reservation, on WAITING it keeps the message buffer
// for re-queue, and on DONE_OK/DONE_ERR it keeps neither. The dispatcher's
// status switch (spec §4.1 step 10) releases and frees accordingly.
type SingleRecordExecutor interface {
	Start(tr *Transaction) Status
}

// MultiRecordExecutor is the contract for scan, query, and the legacy batch
// direct handler (spec §2, §4.1 step 7). For scan and query, a nil error
// return means the executor took ownership of the message buffer. The
// legacy batch-direct executor never takes ownership: the core frees the
// buffer whatever it returns. Any non-nil error means the core retains
// ownership and must reply with it.
type MultiRecordExecutor interface {
	Start(tr *Transaction, namespace string) error
}

// ReplicationHandler is the XDR shortcut's target (spec §4.1 step 1). It
// always owns the message buffer on return, success or not.
type ReplicationHandler interface {
	HandleReplicated(tr *Transaction)
}

// Permission is the access-control action a SecurityProvider is asked to
// authorize (spec §4.1 steps 3, 7, 9).
type Permission uint8

const (
	PermNone Permission = iota
	PermRead
	PermWrite
	PermQuery
	PermUDFQuery
	PermScan
	PermUDFScan
)

// SecurityProvider is the external security-policy collaborator (spec §1
// Non-goals, §4.1 steps 3/7/9). CheckDataOp additionally returns the result
// code to reply with on denial, since the source surfaces the denial
// reason verbatim to the client (spec §7 "whatever security returns
// verbatim").
type SecurityProvider interface {
	Authenticate(caller CallerHandle) (ResultCode, error)
	CheckDataOp(caller CallerHandle, namespace string, perm Permission) (ok bool, code ResultCode)
}

// ProxyFabric forwards a request to a peer node without awaiting a reply
// (spec §2, §4.1 step 11).
type ProxyFabric interface {
	// Divert forwards tr to dest under the given cluster epoch. It reports
	// whether the forward was accepted; false means the core must reply
	// with FAIL_UNKNOWN itself (original source's as_proxy_divert contract).
	Divert(dest NodeID, tr *Transaction, namespace string, clusterKey uint64) bool

	// ReturnToSender hands tr back to the peer that originally proxied it
	// to us (origin OriginPeerProxy, spec §4.1 step 11).
	ReturnToSender(tr *Transaction, namespace string)
}

// Histogram is the observability hook from spec §4.2. A nil-safe no-op
// implementation is the default.
type Histogram interface {
	RecordNanos(name string, nanos int64)
}

type nopHistogram struct{}

func (nopHistogram) RecordNanos(string, int64) {}

// Stats is the statistics-counter collaborator from spec §7
// (batch_errors, query_fail) plus its scan analogue for symmetry.
type Stats interface {
	IncrBatchErrors()
	IncrQueryFail()
	IncrScanFail()
}

type nopStats struct{}

func (nopStats) IncrBatchErrors() {}
func (nopStats) IncrQueryFail()   {}
func (nopStats) IncrScanFail()    {}
