package tsvc

import (
	"sync"
	"sync/atomic"
)

// transactionQueue is one bounded FIFO lane served by one or more worker
// goroutines, modeled on the teacher's per-broker request ring
// (broker.reqs ringReq / handleReqs) generalized from "per TCP connection"
// to "per transaction queue".
type transactionQueue struct {
	ch   chan *Transaction
	dead int32
}

func newTransactionQueue(capacity int) *transactionQueue {
	return &transactionQueue{ch: make(chan *Transaction, capacity)}
}

func (q *transactionQueue) push(tr *Transaction) {
	q.ch <- tr
}

// pop blocks forever, matching spec §4.2 "Each worker performs an infinite
// blocking pop". It reports false if the queue was torn down, the direct
// analogue of the source's "failed pop is fatal" — here the caller decides
// whether shutdown is in progress before treating a closed channel as fatal.
func (q *transactionQueue) pop() (*Transaction, bool) {
	tr, ok := <-q.ch
	return tr, ok
}

func (q *transactionQueue) stop() {
	if atomic.CompareAndSwapInt32(&q.dead, 0, 1) {
		close(q.ch)
	}
}

// QueuePlane is the process-wide singleton described in spec §9: a fixed
// bank of queues, a worker pool bound to them, and an atomic round-robin
// counter. It is constructed once at init and passed to Enqueue /
// ProcessOrEnqueue by value-of-pointer, matching the source's g_* globals
// folded into one opaque value.
type QueuePlane struct {
	cfg *config
	d   *Dispatcher

	queues  []*transactionQueue
	current uint32 // atomic round-robin counter

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewQueuePlane sizes and starts the queue bank and its workers per spec
// §4.2's sizing rule, then spawns NTransactionThreadsPerQueue workers per
// queue, each running an infinite blocking pop against d.Process.
func NewQueuePlane(d *Dispatcher, opts ...Opt) *QueuePlane {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	nQueues := cfg.nTransactionQueues
	if cfg.useQueuePerDevice {
		nQueues = 0
		offset := 0
		resolved := make([]NamespaceConfig, len(cfg.namespaces))
		for i, ns := range cfg.namespaces {
			ns.DevQOffset = offset
			if ns.NDevices > 0 {
				offset += ns.NDevices * 2
			} else {
				offset += 2
			}
			resolved[i] = ns
		}
		cfg.namespaces = resolved
		nQueues = offset
		if nQueues > MaxTransactionQueues {
			mustNotHappen("NewQueuePlane: %d queues required for use-queue-per-device exceeds max %d", nQueues, MaxTransactionQueues)
		}
		cfg.nTransactionQueues = nQueues
	}

	qp := &QueuePlane{
		cfg:     cfg,
		d:       d,
		queues:  make([]*transactionQueue, nQueues),
		stopped: make(chan struct{}),
	}
	for i := range qp.queues {
		qp.queues[i] = newTransactionQueue(64)
	}
	for i, q := range qp.queues {
		for j := 0; j < cfg.nTransactionThreadsPerQueue; j++ {
			qp.wg.Add(1)
			go qp.worker(i, q)
		}
	}
	return qp
}

func (qp *QueuePlane) worker(queueIdx int, q *transactionQueue) {
	defer qp.wg.Done()
	for {
		tr, ok := q.pop()
		if !ok {
			if atomic.LoadInt32(&q.dead) == 0 {
				mustNotHappen("worker: pop failed on live queue %d", queueIdx)
			}
			return // queue was stopped; not a fatal condition during shutdown
		}
		if qp.cfg.svcBenchmarksEnabled && tr.BenchmarkNanos != 0 && !tr.IsRestart() {
			qp.cfg.histogram.RecordNanos("svc_queue_wait", tr.BenchmarkNanos)
		}
		qp.d.Process(tr)
	}
}

// Stop closes every queue and waits for workers to drain. It is safe to
// call multiple times.
func (qp *QueuePlane) Stop() {
	qp.stopOnce.Do(func() {
		for _, q := range qp.queues {
			q.stop()
		}
		close(qp.stopped)
	})
	qp.wg.Wait()
}

// NQueues reports the number of lanes, mostly useful to tests asserting
// spec §8 invariant 6 (queue index always in range).
func (qp *QueuePlane) NQueues() int { return len(qp.queues) }

// Enqueue implements spec §4.2's routing function and pushes tr onto the
// chosen lane.
func (qp *QueuePlane) Enqueue(tr *Transaction) {
	idx := qp.route(tr)
	if idx < 0 || idx >= len(qp.queues) {
		mustNotHappen("Enqueue: routed queue index %d out of range [0,%d)", idx, len(qp.queues))
	}
	qp.queues[idx].push(tr)
}

// route picks a queue index per spec §4.2.
func (qp *QueuePlane) route(tr *Transaction) int {
	if !qp.cfg.useQueuePerDevice {
		n := atomic.AddUint32(&qp.current, 1) - 1
		return int(n % uint32(len(qp.queues)))
	}

	msg := tr.Message
	nDevices := msg.NDevices()
	offset := msg.DevQOffset()
	isRead := msg.Info1()&Info1Read != 0

	if nDevices > 0 {
		byte8 := 0
		if tr.HasDigest() {
			byte8 = int(tr.Digest[8])
		}
		idx := (byte8 % nDevices) + offset
		if !isRead {
			idx += nDevices
		}
		return idx
	}

	if isRead {
		return offset
	}
	return offset + 1
}

// ProcessOrEnqueue implements spec §4.2's inline bypass: dispatch
// synchronously on the caller's goroutine when it is safe to do so,
// otherwise enqueue.
func (qp *QueuePlane) ProcessOrEnqueue(tr *Transaction, allNamespacesInMemory, anyNamespaceInMemory bool) {
	if qp.cfg.allowInlineTransactions && anyNamespaceInMemory &&
		(allNamespacesInMemory || tr.Message.InMemoryNamespace()) {
		qp.d.Process(tr)
		return
	}
	qp.Enqueue(tr)
}
