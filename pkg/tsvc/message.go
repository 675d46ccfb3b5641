package tsvc

import "time"

// ProtoType distinguishes the handful of message types the dispatcher itself
// branches on; everything else is opaque to the core (spec §1, §6).
type ProtoType uint8

const (
	ProtoTypeNormal ProtoType = iota
	ProtoTypeInternalXDR
)

// Info1/Info2 bits the core interprets (spec §6). The wire protocol may
// define many more bits; only these two are meaningful to this package.
const (
	Info1Read uint32 = 1 << iota
)

const (
	Info2Write uint32 = 1 << iota
)

// FieldType enumerates the keyed-field kinds the core reads out of a
// message. Parsing the rest of the field table is the wire-protocol layer's
// job (out of scope, spec §1).
type FieldType uint8

const (
	FieldNamespace FieldType = iota
	FieldDigestRipe
	FieldKey
	FieldSet
)

// MultiRecordKind classifies a multi-record transaction (spec §4.1 step 6).
type MultiRecordKind uint8

const (
	MultiBatchDirect MultiRecordKind = iota
	MultiQuery
	MultiScan
)

// ProtocolMessage is the external collaborator representing one inbound
// wire message (spec §6). The core never parses bytes; it only reads the
// handful of attributes below, all of which a real wire-protocol layer
// would have already decoded.
type ProtocolMessage interface {
	// Type is PROTO_TYPE_INTERNAL_XDR or anything else.
	Type() ProtoType

	// Info1 and Info2 carry the READ and WRITE bits respectively, among
	// bits this package does not interpret.
	Info1() uint32
	Info2() uint32

	// TransactionTTL is the message's TTL as a time.Duration (the wire
	// carries it in milliseconds); zero means "unset".
	TransactionTTL() time.Duration

	// Field looks up a keyed field by type. ok is false if absent.
	Field(FieldType) (value []byte, ok bool)

	// IsMultiRecord reports whether this message describes a multi-record
	// operation (batch-direct/query/scan) as opposed to a single-record
	// one (read/write/delete/udf/batch-sub).
	IsMultiRecord() bool

	// MultiRecordKind is meaningful only when IsMultiRecord is true.
	MultiRecordKind() MultiRecordKind

	// IsUDF reports whether a query/scan carries a UDF (for permission
	// selection), or whether a single-record write is a UDF call.
	IsUDF() bool

	// IsDelete reports whether a single-record write is a delete.
	IsDelete() bool

	// HasDigest reports whether the message already carries an explicit
	// digest field (modern client) as opposed to (set, key) (old client).
	HasDigest() bool

	// HasSet reports whether a SET field is present at all; its absence
	// is legal (default set).
	HasSet() bool

	// InMemoryNamespace reports whether this message's target namespace
	// is configured memory-only, used by the inline-bypass peek in
	// spec §4.2. It is valid to call this before namespace resolution
	// proper; it is a peek, same as the source's as_msg_peek.
	InMemoryNamespace() bool

	// NDevices and DevQOffset expose the routing inputs spec §4.2's
	// queue-per-device mode needs without requiring the core to resolve
	// a full namespace object.
	NDevices() int
	DevQOffset() int
}
