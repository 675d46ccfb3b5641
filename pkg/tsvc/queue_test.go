package tsvc

import "testing"

func TestRouteQueuePerDeviceWrite(t *testing.T) {
	// Namespace with n_devices = 4, dev_q_offset = 10, a write transaction
	// whose digest[8] = 9. Expect queue index (9 mod 4) + 10 + 4 = 15.
	d := NewDispatcher(nil)
	qp := &QueuePlane{
		cfg: &config{useQueuePerDevice: true},
		d:   d,
	}
	qp.queues = make([]*transactionQueue, 16)
	for i := range qp.queues {
		qp.queues[i] = newTransactionQueue(1)
	}

	var digest Digest
	digest[8] = 9
	msg := &fakeMessage{
		nDevices:   4,
		devQOffset: 10,
		info2:      Info2Write,
	}
	tr := &Transaction{Message: msg}
	tr.SetDigest(digest)

	idx := qp.route(tr)
	if idx != 15 {
		t.Fatalf("route() = %d, want 15", idx)
	}
}

func TestRouteQueuePerDeviceRead(t *testing.T) {
	d := NewDispatcher(nil)
	qp := &QueuePlane{
		cfg: &config{useQueuePerDevice: true},
		d:   d,
	}
	qp.queues = make([]*transactionQueue, 16)
	for i := range qp.queues {
		qp.queues[i] = newTransactionQueue(1)
	}

	var digest Digest
	digest[8] = 9
	msg := &fakeMessage{
		nDevices:   4,
		devQOffset: 10,
		info1:      Info1Read,
	}
	tr := &Transaction{Message: msg}
	tr.SetDigest(digest)

	idx := qp.route(tr)
	if idx != 11 { // (9 mod 4) + 10, no +nDevices for reads
		t.Fatalf("route() = %d, want 11", idx)
	}
}

func TestRouteMemoryOnlyNamespace(t *testing.T) {
	d := NewDispatcher(nil)
	qp := &QueuePlane{
		cfg: &config{useQueuePerDevice: true},
		d:   d,
	}
	qp.queues = make([]*transactionQueue, 4)
	for i := range qp.queues {
		qp.queues[i] = newTransactionQueue(1)
	}

	readMsg := &fakeMessage{nDevices: 0, devQOffset: 2, info1: Info1Read}
	writeMsg := &fakeMessage{nDevices: 0, devQOffset: 2, info2: Info2Write}

	if idx := qp.route(&Transaction{Message: readMsg}); idx != 2 {
		t.Fatalf("memory-only read route = %d, want 2", idx)
	}
	if idx := qp.route(&Transaction{Message: writeMsg}); idx != 3 {
		t.Fatalf("memory-only write route = %d, want 3", idx)
	}
}

func TestRouteRoundRobinAlwaysInRange(t *testing.T) {
	d := NewDispatcher(nil)
	qp := &QueuePlane{
		cfg: &config{useQueuePerDevice: false},
		d:   d,
	}
	qp.queues = make([]*transactionQueue, 8)
	for i := range qp.queues {
		qp.queues[i] = newTransactionQueue(1)
	}

	for i := 0; i < 100; i++ {
		idx := qp.route(&Transaction{Message: &fakeMessage{}})
		if idx < 0 || idx >= len(qp.queues) {
			t.Fatalf("route() = %d, out of range [0,%d)", idx, len(qp.queues))
		}
	}
}

func TestNewQueuePlaneSizingQueuePerDevice(t *testing.T) {
	d := NewDispatcher(nil)
	qp := NewQueuePlane(d,
		UseQueuePerDevice(true),
		Namespaces(
			NamespaceConfig{Name: "a", NDevices: 4}, // 8 queues
			NamespaceConfig{Name: "b", NDevices: 0}, // 2 queues (memory-only)
		),
		NTransactionThreadsPerQueue(1),
	)
	defer qp.Stop()

	if qp.NQueues() != 10 {
		t.Fatalf("NQueues() = %d, want 10", qp.NQueues())
	}
}
