package tsvc

import (
	"errors"

	uuid "github.com/hashicorp/go-uuid"
)

// ReservationMode is the mode under which a partition is reserved.
type ReservationMode uint8

const (
	ReserveRead ReservationMode = iota
	ReserveWrite
	ReserveMigrate
)

func (m ReservationMode) String() string {
	switch m {
	case ReserveRead:
		return "read"
	case ReserveWrite:
		return "write"
	case ReserveMigrate:
		return "migrate"
	default:
		return "unknown"
	}
}

// PartitionState is opaque to this package; it is whatever the partition
// map implementation wants to stamp on a reservation view.
type PartitionState uint8

// Reservation is the opaque handle described in spec §3: authorization to
// serve one (namespace, partition) pair in one mode, held by exactly one
// logical owner at a time. Fields mirror the source's as_partition_reservation.
// The dispatcher (Transaction.Reservation) and the aggregation cursor hold
// the *Reservation pointer the gateway or hook returned, a view into the
// reservation rather than a clone; neither makes a copy of its own.
type Reservation struct {
	Namespace  string
	PartitionID int
	Mode       ReservationMode
	State      PartitionState
	ClusterKey uint64
	Tree       any // primary tree pointer, opaque to this package
	SubTree    any // sub-tree pointer, opaque to this package
	NDupl      int
}

// view returns a shallow copy suitable for stamping onto a Transaction or an
// aggregation cursor slot: every field is copied by value or by reference to
// the same underlying tree/sub-tree, never cloned. This is exactly the
// "partial copy" spec §9 calls out.
func (r *Reservation) view() Reservation {
	return *r
}

// ReservationGateway is the external collaborator from spec §2/§6: the
// partition reservation subsystem. reserve_migrate is documented as
// infallible in normal operation (it is used only for the shipped-op path,
// where the local node is already known to be the winner).
//
// ReserveRead and ReserveWrite return clusterKey alongside dest on every
// call, success or failure: spec §4.1 step 11 / §6 requires the cluster
// epoch the gateway negotiated with dest to flow into the proxy divert even
// when the local reservation attempt failed and rsv is nil, so the epoch
// cannot simply be read off rsv.ClusterKey the way a successful reservation
// can.
type ReservationGateway interface {
	ReserveRead(namespace string, partitionID int) (rsv *Reservation, dest NodeID, clusterKey uint64, err error)
	ReserveWrite(namespace string, partitionID int) (rsv *Reservation, dest NodeID, clusterKey uint64, err error)
	ReserveMigrate(namespace string, partitionID int) (rsv *Reservation, dest NodeID)
	Release(rsv *Reservation)
}

// NodeID identifies a cluster peer. The zero value means "no destination",
// which reservation-success paths must never produce (spec §4.1 "Edge-case
// policies").
type NodeID uint64

// ErrReservationFailed is returned by a ReservationGateway implementation
// when the local node is not the partition's master; the dispatcher reads
// dest off the accompanying return value to decide where to proxy.
var ErrReservationFailed = errors.New("tsvc: reservation failed, local node not master")

// newClusterKey mints a correlation token for a reservation view, standing
// in for the cluster-metadata epoch a real gateway would supply, drawn from
// crypto/rand via go-uuid rather than math/rand (NewTransaction uses the
// same source for request ids). Nothing in this package calls it; the test
// gateway fake scripts its cluster keys directly.
func newClusterKey() uint64 {
	b, err := uuid.GenerateRandomBytes(8)
	if err != nil {
		// uuid's only failure mode is crypto/rand exhaustion; there is no
		// sane fallback for a cluster epoch token, so this is fatal.
		mustNotHappen("newClusterKey: %v", err)
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
