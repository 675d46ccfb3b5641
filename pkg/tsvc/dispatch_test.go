package tsvc

import (
	"testing"
)

func testNamespaces() []NamespaceConfig {
	return []NamespaceConfig{{Name: "test", NDevices: 4}}
}

// withFixedClock pins the nowNanos seam (dispatch.go) to a fixed instant for
// the duration of the test, so the deadline check in processSingleRecord
// doesn't race the real wall clock against a zero StartTimeNanos.
func withFixedClock(t *testing.T, fixed int64) {
	t.Helper()
	prev := nowNanos
	nowNanos = func() int64 { return fixed }
	t.Cleanup(func() { nowNanos = prev })
}

func TestDispatchHappyRead(t *testing.T) {
	withFixedClock(t, 0)
	digest := computeDigest([]byte("s"), []byte("k"))
	msg := newFakeReadMessage("test", digest)

	gw := &fakeGateway{
		readResults: []gatewayResult{{rsv: &Reservation{NDupl: 0}, dest: 1}},
	}
	readExec := &fakeExecutor{status: StatusDoneOK}

	d := NewDispatcher(
		[]Opt{WithReservationGateway(gw), Namespaces(testNamespaces()...)},
		WithReadExecutor(readExec),
	)

	tr, err := NewTransaction(OriginClient, ClientCaller{Reply: func(ResultCode, []byte) {}}, msg, 0)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	d.Process(tr)

	if readExec.calls != 1 {
		t.Fatalf("read executor calls = %d, want 1", readExec.calls)
	}
	if len(gw.released) != 1 {
		t.Fatalf("released count = %d, want 1", len(gw.released))
	}
	if !tr.freed {
		t.Fatalf("message was not freed")
	}
}

func TestDispatchReadWithDuplicatesUpgradesToWrite(t *testing.T) {
	withFixedClock(t, 0)
	digest := computeDigest([]byte("s"), []byte("k"))
	msg := newFakeReadMessage("test", digest)

	dupRsv := &Reservation{NDupl: 2}
	writeRsv := &Reservation{NDupl: 0}
	gw := &fakeGateway{
		readResults:  []gatewayResult{{rsv: dupRsv, dest: 1}},
		writeResults: []gatewayResult{{rsv: writeRsv, dest: 1}},
	}
	readExec := &fakeExecutor{status: StatusDoneOK}

	d := NewDispatcher(
		[]Opt{WithReservationGateway(gw), Namespaces(testNamespaces()...)},
		WithReadExecutor(readExec),
	)

	tr, _ := NewTransaction(OriginClient, ClientCaller{Reply: func(ResultCode, []byte) {}}, msg, 0)
	d.Process(tr)

	if gw.readCalls != 1 || gw.writeCalls != 1 {
		t.Fatalf("readCalls=%d writeCalls=%d, want 1,1", gw.readCalls, gw.writeCalls)
	}
	// The duplicated read reservation must be released before reserving
	// write, and the write reservation released after the executor runs:
	// exactly two releases total, never the same pointer twice.
	if len(gw.released) != 2 {
		t.Fatalf("released count = %d, want 2", len(gw.released))
	}
	if gw.released[0] != dupRsv || gw.released[1] != writeRsv {
		t.Fatalf("released wrong reservations: %+v", gw.released)
	}
}

func TestDispatchWriteForwardedViaProxy(t *testing.T) {
	withFixedClock(t, 0)
	digest := computeDigest([]byte("s"), []byte("k"))
	msg := newFakeWriteMessage("test", digest)

	gw := &fakeGateway{
		writeResults: []gatewayResult{{rsv: nil, dest: 7, clusterKey: 0xCAFE, err: ErrReservationFailed}},
	}
	proxy := &fakeProxy{divertOK: true}

	d := NewDispatcher(
		[]Opt{WithReservationGateway(gw), WithProxyFabric(proxy), Namespaces(testNamespaces()...)},
		WithWriteExecutor(&fakeExecutor{status: StatusDoneOK}),
	)

	tr, _ := NewTransaction(OriginClient, ClientCaller{Reply: func(ResultCode, []byte) {}}, msg, 0)
	d.Process(tr)

	if len(proxy.divertCalls) != 1 {
		t.Fatalf("divert calls = %d, want 1", len(proxy.divertCalls))
	}
	if proxy.divertCalls[0].dest != 7 {
		t.Fatalf("diverted to dest %v, want 7", proxy.divertCalls[0].dest)
	}
	// The cluster epoch the gateway negotiated with dest must reach the
	// proxy even though the local reservation attempt failed (rsv == nil).
	if proxy.divertCalls[0].ck != 0xCAFE {
		t.Fatalf("diverted with cluster key %#x, want 0xcafe", proxy.divertCalls[0].ck)
	}
	// Divert accepted: the fabric now owns the message, core must not free it.
	if tr.freed {
		t.Fatalf("message was freed despite successful divert")
	}
}

func TestDispatchShippedOpSanityCheck(t *testing.T) {
	withFixedClock(t, 0)
	digest := computeDigest([]byte("s"), []byte("k"))
	msg := newFakeWriteMessage("test", digest)

	// A shipped-op reservation with duplicates is a protocol-level
	// surprise (spec §4.1's "shipped-op is not write" sibling check); the
	// dispatcher must release it and fail closed rather than proceed.
	gw := &fakeGateway{
		migrateResults: []gatewayResult{{rsv: &Reservation{NDupl: 3}, dest: 1}},
	}
	writeExec := &fakeExecutor{status: StatusDoneOK}

	d := NewDispatcher(
		[]Opt{WithReservationGateway(gw), Namespaces(testNamespaces()...)},
		WithWriteExecutor(writeExec),
	)

	tr, _ := NewTransaction(OriginClient, ClientCaller{Reply: func(ResultCode, []byte) {}}, msg, 0)
	tr.FromFlags = FlagShippedOp
	d.Process(tr)

	if writeExec.calls != 0 {
		t.Fatalf("write executor should not run on shipped-op sanity failure")
	}
	if len(gw.released) != 1 {
		t.Fatalf("released count = %d, want 1", len(gw.released))
	}
	if tr.ResultCode != ResultFailUnknown {
		t.Fatalf("ResultCode = %v, want ResultFailUnknown", tr.ResultCode)
	}
}

func TestDispatchInProgressKeepsReservationAndMessage(t *testing.T) {
	withFixedClock(t, 0)
	digest := computeDigest([]byte("s"), []byte("k"))
	msg := newFakeReadMessage("test", digest)

	rsv := &Reservation{NDupl: 0}
	gw := &fakeGateway{
		readResults: []gatewayResult{{rsv: rsv, dest: 1}},
	}
	readExec := &fakeExecutor{status: StatusInProgress}

	d := NewDispatcher(
		[]Opt{WithReservationGateway(gw), Namespaces(testNamespaces()...)},
		WithReadExecutor(readExec),
	)

	tr, _ := NewTransaction(OriginClient, ClientCaller{Reply: func(ResultCode, []byte) {}}, msg, 0)
	d.Process(tr)

	if len(gw.released) != 0 {
		t.Fatalf("released count = %d, want 0 (executor owns it now)", len(gw.released))
	}
	if tr.freed {
		t.Fatalf("message freed despite IN_PROGRESS executor")
	}
	if tr.Reservation != nil {
		t.Fatalf("dispatcher must clear its own reservation pointer on IN_PROGRESS")
	}
}
