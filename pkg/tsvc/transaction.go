package tsvc

import (
	"time"

	uuid "github.com/hashicorp/go-uuid"
)

// Origin identifies the source of a transaction (spec §3, glossary).
type Origin uint8

const (
	OriginClient Origin = iota
	OriginPeerProxy
	OriginInternalUDF
	OriginExpiration
	OriginBatch
)

func (o Origin) String() string {
	switch o {
	case OriginClient:
		return "client"
	case OriginPeerProxy:
		return "peer-proxy"
	case OriginInternalUDF:
		return "internal-udf"
	case OriginExpiration:
		return "expiration"
	case OriginBatch:
		return "batch"
	default:
		return "unknown-origin"
	}
}

// FromFlags is the bitset carried on a Transaction; ShippedOp is the only
// bit the core interprets (spec §3).
type FromFlags uint32

const (
	FlagShippedOp FromFlags = 1 << iota
)

func (f FromFlags) ShippedOp() bool { return f&FlagShippedOp != 0 }

// CallerHandle is a tagged union over the four kinds of caller a
// Transaction can carry, discriminated by Origin (spec §9 "Per-origin
// callback dispatch": reject mismatched (tag, handle) pairs at
// construction). Exactly one of these is populated per handle instance.
type CallerHandle interface {
	callerOrigin() Origin
}

// ClientCaller is the handle for OriginClient / OriginBatch transactions:
// a protocol-reply sink. Reply is called at most once per transaction
// (spec §7 "exactly one reply").
type ClientCaller struct {
	Origin_ Origin // OriginClient or OriginBatch
	Reply   func(code ResultCode, data []byte)
}

func (c ClientCaller) callerOrigin() Origin { return c.Origin_ }

// ProxyCaller is the handle for OriginPeerProxy transactions: identifies
// the peer that proxied the request to us, for return-to-sender.
type ProxyCaller struct {
	ProxyNode NodeID
}

func (ProxyCaller) callerOrigin() Origin { return OriginPeerProxy }

// InternalUDFCaller is the handle for OriginInternalUDF transactions: a
// completion callback invoked exactly once on any terminal path (spec §7).
type InternalUDFCaller struct {
	Callback func(userData any, code ResultCode)
	UserData any
}

func (InternalUDFCaller) callerOrigin() Origin { return OriginInternalUDF }

// ExpirationCaller is the handle for OriginExpiration transactions: there
// is nothing to reply to, failures are silently dropped (spec §4.1 step
// 11).
type ExpirationCaller struct{}

func (ExpirationCaller) callerOrigin() Origin { return OriginExpiration }

// NewCallerHandle validates that handle matches origin and returns it,
// rejecting the mismatch at construction rather than at use, per spec §9.
func NewCallerHandle(origin Origin, handle CallerHandle) (CallerHandle, error) {
	switch h := handle.(type) {
	case ClientCaller:
		if origin != OriginClient && origin != OriginBatch {
			return nil, &ClientError{Code: ResultFailUnknown}
		}
		h.Origin_ = origin
		return h, nil
	case ProxyCaller:
		if origin != OriginPeerProxy {
			return nil, &ClientError{Code: ResultFailUnknown}
		}
		return h, nil
	case InternalUDFCaller:
		if origin != OriginInternalUDF {
			return nil, &ClientError{Code: ResultFailUnknown}
		}
		return h, nil
	case ExpirationCaller:
		if origin != OriginExpiration {
			return nil, &ClientError{Code: ResultFailUnknown}
		}
		return h, nil
	default:
		return nil, &ClientError{Code: ResultFailUnknown}
	}
}

// Transaction is the unit of work flowing through the dispatcher (spec §3).
// A *Transaction owns its Message until ownership is explicitly transferred
// or it is freed; Dispatcher.Process is responsible for proving that on
// every return path.
type Transaction struct {
	RequestID string // correlation id, generated in NewTransaction

	Origin Origin
	Caller CallerHandle
	Message ProtocolMessage

	StartTimeNanos int64
	EndTimeNanos   int64

	Digest      Digest
	hasDigest   bool
	Namespace   string

	Reservation *Reservation // nil until a reservation is held

	ResultCode     ResultCode
	BenchmarkNanos int64
	FromFlags      FromFlags

	// restart is set internally when a WAITING transaction is re-queued;
	// it preserves StartTimeNanos and skips queue-wait histogram
	// recording on the second pass (spec §4.1 "Edge-case policies").
	restart bool

	freed    bool
	released bool
}

// NewTransaction constructs a Transaction for the given origin/caller/message,
// stamping a fresh correlation id for logging (generalizing the teacher's ad
// hoc ctx.Value("requestId") string into a proper identifier; see
// SPEC_FULL.md "Logging").
func NewTransaction(origin Origin, caller CallerHandle, msg ProtocolMessage, startTimeNanos int64) (*Transaction, error) {
	h, err := NewCallerHandle(origin, caller)
	if err != nil {
		return nil, err
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		mustNotHappen("NewTransaction: %v", err)
	}
	return &Transaction{
		RequestID:      id,
		Origin:         origin,
		Caller:         h,
		Message:        msg,
		StartTimeNanos: startTimeNanos,
	}, nil
}

// MarkRestart flags tr as a re-queued WAITING transaction.
func (tr *Transaction) MarkRestart() { tr.restart = true }

// IsRestart reports whether tr is on its second pass through the dispatcher.
func (tr *Transaction) IsRestart() bool { return tr.restart }

// SetDigest installs an explicit digest (modern client or batch-sub).
func (tr *Transaction) SetDigest(d Digest) {
	tr.Digest = d
	tr.hasDigest = true
}

// HasDigest reports whether a digest has been computed or installed yet.
func (tr *Transaction) HasDigest() bool { return tr.hasDigest }

// deadline returns the absolute end time in nanoseconds: startNanos plus the
// message TTL or, when that is unset, the
// configured maximum (spec §4.1 step 8, invariant §3/§8.5).
func deadline(startNanos int64, msg ProtocolMessage, maxTTL time.Duration) int64 {
	if ttl := msg.TransactionTTL(); ttl != 0 {
		return startNanos + ttl.Nanoseconds()
	}
	return startNanos + maxTTL.Nanoseconds()
}
