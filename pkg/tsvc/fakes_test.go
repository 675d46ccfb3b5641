package tsvc

import "time"

// fakeMessage is a hand-rolled ProtocolMessage fake, in the pack's
// no-mocking-library convention.
type fakeMessage struct {
	typ             ProtoType
	info1           uint32
	info2           uint32
	ttl             time.Duration
	fields          map[FieldType][]byte
	multiRecord     bool
	multiKind       MultiRecordKind
	isUDF           bool
	isDelete        bool
	hasDigest       bool
	hasSet          bool
	inMemory        bool
	nDevices        int
	devQOffset      int
}

func (m *fakeMessage) Type() ProtoType                         { return m.typ }
func (m *fakeMessage) Info1() uint32                            { return m.info1 }
func (m *fakeMessage) Info2() uint32                            { return m.info2 }
func (m *fakeMessage) TransactionTTL() time.Duration            { return m.ttl }
func (m *fakeMessage) IsMultiRecord() bool                      { return m.multiRecord }
func (m *fakeMessage) MultiRecordKind() MultiRecordKind         { return m.multiKind }
func (m *fakeMessage) IsUDF() bool                              { return m.isUDF }
func (m *fakeMessage) IsDelete() bool                           { return m.isDelete }
func (m *fakeMessage) HasDigest() bool                          { return m.hasDigest }
func (m *fakeMessage) HasSet() bool                             { return m.hasSet }
func (m *fakeMessage) InMemoryNamespace() bool                  { return m.inMemory }
func (m *fakeMessage) NDevices() int                            { return m.nDevices }
func (m *fakeMessage) DevQOffset() int                          { return m.devQOffset }
func (m *fakeMessage) Field(t FieldType) ([]byte, bool) {
	v, ok := m.fields[t]
	return v, ok
}

func newFakeReadMessage(ns string, digest Digest) *fakeMessage {
	return &fakeMessage{
		info1:     Info1Read,
		hasDigest: true,
		fields: map[FieldType][]byte{
			FieldNamespace:  []byte(ns),
			FieldDigestRipe: digest[:],
		},
	}
}

func newFakeWriteMessage(ns string, digest Digest) *fakeMessage {
	return &fakeMessage{
		info2:     Info2Write,
		hasDigest: true,
		fields: map[FieldType][]byte{
			FieldNamespace:  []byte(ns),
			FieldDigestRipe: digest[:],
		},
	}
}

// fakeGateway is a hand-rolled ReservationGateway fake that lets tests
// script exact return sequences and records release calls for invariant
// checking (spec §8 invariant 2: exactly one release per acquired
// reservation).
type fakeGateway struct {
	readResults    []gatewayResult
	writeResults   []gatewayResult
	migrateResults []gatewayResult

	readCalls    int
	writeCalls   int
	migrateCalls int

	released []*Reservation
}

type gatewayResult struct {
	rsv        *Reservation
	dest       NodeID
	clusterKey uint64
	err        error
}

func (g *fakeGateway) ReserveRead(ns string, pid int) (*Reservation, NodeID, uint64, error) {
	r := g.readResults[g.readCalls]
	g.readCalls++
	return r.rsv, r.dest, r.clusterKey, r.err
}

func (g *fakeGateway) ReserveWrite(ns string, pid int) (*Reservation, NodeID, uint64, error) {
	r := g.writeResults[g.writeCalls]
	g.writeCalls++
	return r.rsv, r.dest, r.clusterKey, r.err
}

func (g *fakeGateway) ReserveMigrate(ns string, pid int) (*Reservation, NodeID) {
	r := g.migrateResults[g.migrateCalls]
	g.migrateCalls++
	return r.rsv, r.dest
}

func (g *fakeGateway) Release(rsv *Reservation) {
	for _, r := range g.released {
		if r == rsv {
			mustNotHappen("fakeGateway.Release: double release")
		}
	}
	g.released = append(g.released, rsv)
}

// fakeExecutor returns a scripted Status and records invocation count.
type fakeExecutor struct {
	status Status
	calls  int
}

func (e *fakeExecutor) Start(tr *Transaction) Status {
	e.calls++
	return e.status
}

// fakeProxy records Divert/ReturnToSender calls.
type fakeProxy struct {
	divertOK      bool
	divertCalls   []divertCall
	returnedCalls int
}

type divertCall struct {
	dest NodeID
	ns   string
	ck   uint64
}

func (p *fakeProxy) Divert(dest NodeID, tr *Transaction, ns string, ck uint64) bool {
	p.divertCalls = append(p.divertCalls, divertCall{dest, ns, ck})
	return p.divertOK
}

func (p *fakeProxy) ReturnToSender(tr *Transaction, ns string) {
	p.returnedCalls++
}
