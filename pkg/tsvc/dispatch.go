package tsvc

import "time"

// Dispatcher classifies, authenticates, times, and reserves partitions for
// incoming transactions, then hands them to a specialized executor (spec
// §4.1). It holds no per-transaction state; everything mutable lives on the
// *Transaction passed to Process.
type Dispatcher struct {
	cfg *config

	readExecutor   SingleRecordExecutor
	writeExecutor  SingleRecordExecutor
	deleteExecutor SingleRecordExecutor
	udfExecutor    SingleRecordExecutor

	batchDirectExecutor MultiRecordExecutor
	queryExecutor       MultiRecordExecutor
	scanExecutor        MultiRecordExecutor

	resolveNamespace func(msg ProtocolMessage, field []byte) (ns string, ok bool)
	clusterReady     func(origin Origin) bool
}

// DispatcherOpt is an Opt specialized to single/multi-record executor
// wiring; it composes with the shared Opt set in config.go.
type DispatcherOpt func(*Dispatcher)

func WithReadExecutor(e SingleRecordExecutor) DispatcherOpt {
	return func(d *Dispatcher) { d.readExecutor = e }
}
func WithWriteExecutor(e SingleRecordExecutor) DispatcherOpt {
	return func(d *Dispatcher) { d.writeExecutor = e }
}
func WithDeleteExecutor(e SingleRecordExecutor) DispatcherOpt {
	return func(d *Dispatcher) { d.deleteExecutor = e }
}
func WithUDFExecutor(e SingleRecordExecutor) DispatcherOpt {
	return func(d *Dispatcher) { d.udfExecutor = e }
}
func WithBatchDirectExecutor(e MultiRecordExecutor) DispatcherOpt {
	return func(d *Dispatcher) { d.batchDirectExecutor = e }
}
func WithQueryExecutor(e MultiRecordExecutor) DispatcherOpt {
	return func(d *Dispatcher) { d.queryExecutor = e }
}
func WithScanExecutor(e MultiRecordExecutor) DispatcherOpt {
	return func(d *Dispatcher) { d.scanExecutor = e }
}

// WithNamespaceResolver supplies the namespace-lookup collaborator (spec
// §4.1 step 4: "absence yields FAIL_NAMESPACE; resolution failure yields
// the same"). resolveNamespace receives the raw NAMESPACE field bytes.
func WithNamespaceResolver(f func(msg ProtocolMessage, field []byte) (string, bool)) DispatcherOpt {
	return func(d *Dispatcher) { d.resolveNamespace = f }
}

// WithClusterReadyCheck supplies the pre-balance readiness gate (spec §4.1
// step 5). The default always reports ready.
func WithClusterReadyCheck(f func(origin Origin) bool) DispatcherOpt {
	return func(d *Dispatcher) { d.clusterReady = f }
}

// NewDispatcher builds a Dispatcher from shared Opts plus dispatcher-specific
// executor wiring.
func NewDispatcher(opts []Opt, dopts ...DispatcherOpt) *Dispatcher {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	d := &Dispatcher{
		cfg:          cfg,
		clusterReady: func(Origin) bool { return true },
	}
	for _, o := range dopts {
		o(d)
	}
	return d
}

func (d *Dispatcher) log() Logger { return d.cfg.logger }

// nowNanos is a seam for tests; production callers get wall-clock time.
var nowNanos = func() int64 { return time.Now().UnixNano() }

// Process implements spec §4.1's pipeline end to end. It takes ownership of
// tr.Message on entry and is responsible for its fate on every return path.
func (d *Dispatcher) Process(tr *Transaction) {
	// Step 1: XDR shortcut.
	if tr.Message.Type() == ProtoTypeInternalXDR {
		if d.cfg.replication == nil {
			mustNotHappen("Process: internal-XDR message with no ReplicationHandler configured")
		}
		d.cfg.replication.HandleReplicated(tr)
		return
	}

	freeMsg := true
	defer func() {
		// Step 12: cleanup. Origin batch shares buffers across sibling
		// transactions and must never be freed by the core (spec §4.1
		// step 12, §5 "Message buffer discipline").
		if freeMsg && tr.Origin != OriginBatch {
			d.freeMessage(tr)
		}
	}()

	msg := tr.Message

	// Step 3: authentication, client origin only.
	if tr.Origin == OriginClient {
		code, err := d.authenticate(tr)
		if err != nil || code != ResultOK {
			d.log().Log(LogLevelWarn, "authentication failed", "requestId", tr.RequestID, "code", code)
			d.replyError(tr, code)
			return
		}
	}

	// Step 4: namespace resolution.
	nsField, ok := msg.Field(FieldNamespace)
	if !ok {
		d.log().Log(LogLevelWarn, "no namespace in protocol request", "requestId", tr.RequestID)
		d.replyError(tr, ResultFailNamespace)
		return
	}
	ns, ok := d.resolveNS(msg, nsField)
	if !ok {
		d.log().Log(LogLevelWarn, "unknown namespace in protocol request", "requestId", tr.RequestID)
		d.replyError(tr, ResultFailNamespace)
		return
	}
	tr.Namespace = ns

	// Step 5: readiness gate. Only the expiration thread may proceed before
	// the first partition balance completes.
	if !d.clusterReady(tr.Origin) && tr.Origin != OriginExpiration {
		d.log().Log(LogLevelDebug, "rejecting transaction - initial partition balance unresolved", "requestId", tr.RequestID)
		// Open question preserved from spec §9: this path reports errors
		// without namespace context for multi-record transactions, and
		// scan/query failures here are deliberately NOT counted in
		// per-namespace counters.
		d.replyError(tr, ResultFailUnavailable)
		return
	}

	// Step 6/7: multi-record path.
	if msg.IsMultiRecord() {
		freeMsg = d.processMultiRecord(tr, ns)
		return
	}

	// Step 8/9/10/11: single-record path.
	freeMsg = d.processSingleRecord(tr, ns)
}

func (d *Dispatcher) resolveNS(msg ProtocolMessage, field []byte) (string, bool) {
	if d.resolveNamespace != nil {
		return d.resolveNamespace(msg, field)
	}
	if len(field) == 0 {
		return "", false
	}
	return string(field), true
}

func (d *Dispatcher) authenticate(tr *Transaction) (ResultCode, error) {
	if d.cfg.security == nil {
		return ResultOK, nil
	}
	return d.cfg.security.Authenticate(tr.Caller)
}

// processMultiRecord implements spec §4.1 step 7. It returns whether the
// core still owns the message buffer (true = core frees it).
func (d *Dispatcher) processMultiRecord(tr *Transaction, ns string) bool {
	msg := tr.Message

	if ttl := msg.TransactionTTL(); ttl != 0 {
		tr.EndTimeNanos = tr.StartTimeNanos + ttl.Nanoseconds()
	}
	// No default TTL for multi-record transactions (spec §4.1 step 7).

	switch msg.MultiRecordKind() {
	case MultiBatchDirect:
		if ok, code := d.checkDataOp(tr, ns, PermRead); !ok {
			d.multiRecordError(tr, code)
			return true
		}
		if d.batchDirectExecutor == nil {
			mustNotHappen("processMultiRecord: no batch-direct executor configured")
		}
		if err := d.batchDirectExecutor.Start(tr, ns); err != nil {
			d.cfg.stats.IncrBatchErrors()
			d.multiRecordError(tr, codeFromErr(err))
			return true
		}
		return true // legacy batch never takes ownership in this spec's model

	case MultiQuery:
		perm := PermQuery
		if msg.IsUDF() {
			perm = PermUDFQuery
		}
		if ok, code := d.checkDataOp(tr, ns, perm); !ok {
			d.multiRecordError(tr, code)
			return true
		}
		if d.queryExecutor == nil {
			mustNotHappen("processMultiRecord: no query executor configured")
		}
		if err := d.queryExecutor.Start(tr, ns); err != nil {
			d.cfg.stats.IncrQueryFail()
			d.multiRecordError(tr, codeFromErr(err))
			return true
		}
		return false // executor took ownership of the message buffer

	default: // MultiScan
		perm := PermScan
		if msg.IsUDF() {
			perm = PermUDFScan
		}
		if ok, code := d.checkDataOp(tr, ns, perm); !ok {
			d.multiRecordError(tr, code)
			return true
		}
		if d.scanExecutor == nil {
			mustNotHappen("processMultiRecord: no scan executor configured")
		}
		if err := d.scanExecutor.Start(tr, ns); err != nil {
			d.cfg.stats.IncrScanFail()
			d.multiRecordError(tr, codeFromErr(err))
			return true
		}
		return false
	}
}

func codeFromErr(err error) ResultCode {
	if ce, ok := err.(*ClientError); ok {
		return ce.Code
	}
	return ResultFailUnknown
}

// checkDataOp implements spec §4.1 steps 7/9's permission gate, shared by
// the multi-record and single-record paths: only client/batch origins are
// subject to it, and a nil SecurityProvider means the deployment runs
// without access control.
func (d *Dispatcher) checkDataOp(tr *Transaction, ns string, perm Permission) (bool, ResultCode) {
	if tr.Origin != OriginClient && tr.Origin != OriginBatch {
		return true, ResultOK
	}
	if d.cfg.security == nil {
		return true, ResultOK
	}
	return d.cfg.security.CheckDataOp(tr.Caller, ns, perm)
}

// processSingleRecord implements spec §4.1 steps 8-11. Returns whether the
// core still owns the message buffer.
func (d *Dispatcher) processSingleRecord(tr *Transaction, ns string) bool {
	msg := tr.Message

	if !tr.IsRestart() || tr.EndTimeNanos == 0 {
		tr.EndTimeNanos = deadline(tr.StartTimeNanos, msg, d.cfg.maxTTL)
	}

	if nowNanos() > tr.EndTimeNanos {
		d.log().Log(LogLevelDebug, "transaction timed out in queue", "requestId", tr.RequestID)
		d.singleRecordError(tr, ResultFailTimeout)
		return true
	}

	if err := d.resolveDigest(tr, msg); err != nil {
		d.singleRecordError(tr, codeFromErr(err))
		return true
	}

	isWrite := msg.Info2()&Info2Write != 0
	isRead := msg.Info1()&Info1Read != 0

	pid := PartitionID(tr.Digest, d.nPartitionsFor(ns))

	var rsv *Reservation
	var dest NodeID
	var clusterKey uint64
	var reserved bool

	switch {
	case tr.FromFlags.ShippedOp():
		if !isWrite {
			d.log().Log(LogLevelWarn, "shipped-op is not write - unexpected", "requestId", tr.RequestID)
			d.singleRecordError(tr, ResultFailUnknown)
			return true
		}
		rsv, dest = d.cfg.gateway.ReserveMigrate(ns, pid)
		if rsv.NDupl != 0 {
			d.log().Log(LogLevelWarn, "shipped-op rsv has duplicates - unexpected", "requestId", tr.RequestID)
			d.cfg.gateway.Release(rsv)
			d.singleRecordError(tr, ResultFailUnknown)
			return true
		}
		reserved = true

	case isWrite:
		if ok, code := d.checkDataOp(tr, ns, PermWrite); !ok {
			d.singleRecordError(tr, code)
			return true
		}
		var err error
		rsv, dest, clusterKey, err = d.cfg.gateway.ReserveWrite(ns, pid)
		reserved = err == nil

	case isRead:
		if ok, code := d.checkDataOp(tr, ns, PermRead); !ok {
			d.singleRecordError(tr, code)
			return true
		}
		var err error
		rsv, dest, clusterKey, err = d.cfg.gateway.ReserveRead(ns, pid)
		reserved = err == nil
		if reserved && rsv.NDupl > 0 {
			// Open question (spec §9): upgrade a duplicated read
			// reservation to a write reservation, preserved for
			// bug-compatible semantics regardless of whether it
			// accomplishes anything.
			d.cfg.gateway.Release(rsv)
			rsv, dest, clusterKey, err = d.cfg.gateway.ReserveWrite(ns, pid)
			reserved = err == nil
		}

	default:
		d.log().Log(LogLevelWarn, "transaction is neither read nor write - unexpected", "requestId", tr.RequestID)
		d.singleRecordError(tr, ResultFailParameter)
		return true
	}

	if reserved && dest == 0 {
		mustNotHappen("processSingleRecord: invalid destination while reserving partition")
	}

	if reserved {
		tr.Reservation = rsv
		clusterKey = rsv.ClusterKey
		return d.runExecutor(tr, msg, isWrite)
	}

	return d.handleReservationFailure(tr, ns, dest, clusterKey)
}

// runExecutor implements spec §4.1 step 10's executor selection and status
// switch. Returns whether the core still owns the message buffer.
func (d *Dispatcher) runExecutor(tr *Transaction, msg ProtocolMessage, isWrite bool) bool {
	if !tr.IsRestart() {
		tr.BenchmarkNanos = 0
	}

	var status Status
	switch {
	case isWrite && msg.IsDelete():
		status = d.deleteExecutor.Start(tr)
	case tr.Origin == OriginInternalUDF || msg.IsUDF():
		status = d.udfExecutor.Start(tr)
	case isWrite:
		status = d.writeExecutor.Start(tr)
	default:
		status = d.readExecutor.Start(tr)
	}

	switch status {
	case StatusDoneOK, StatusDoneErr:
		d.cfg.gateway.Release(tr.Reservation)
		tr.Reservation = nil
		return true
	case StatusInProgress:
		// Both message and reservation are now owned by the executor.
		tr.Reservation = nil
		return false
	case StatusWaiting:
		// Will be re-queued: don't free msg, but release the reservation.
		d.cfg.gateway.Release(tr.Reservation)
		tr.Reservation = nil
		tr.MarkRestart()
		return false
	default:
		mustNotHappen("runExecutor: invalid status %v", status)
		return true
	}
}

// handleReservationFailure implements spec §4.1 step 11.
func (d *Dispatcher) handleReservationFailure(tr *Transaction, ns string, dest NodeID, clusterKey uint64) bool {
	switch tr.Origin {
	case OriginClient, OriginBatch:
		if d.cfg.proxy == nil || !d.cfg.proxy.Divert(dest, tr, ns, clusterKey) {
			d.singleRecordError(tr, ResultFailUnknown)
			return true
		}
		// Client: fabric owns msgp. Batch: it's shared, don't free it.
		return false
	case OriginPeerProxy:
		if d.cfg.proxy != nil {
			d.cfg.proxy.ReturnToSender(tr, ns)
		}
		return true
	case OriginInternalUDF:
		if h, ok := tr.Caller.(InternalUDFCaller); ok && h.Callback != nil {
			h.Callback(h.UserData, ResultFailUnknown)
		}
		return true
	case OriginExpiration:
		return true // silent drop
	default:
		mustNotHappen("handleReservationFailure: unexpected origin %v", tr.Origin)
		return true
	}
}

// resolveDigest implements spec §4.1 step 8 / §6 digest computation.
func (d *Dispatcher) resolveDigest(tr *Transaction, msg ProtocolMessage) error {
	if msg.HasDigest() {
		raw, ok := msg.Field(FieldDigestRipe)
		if !ok || len(raw) != DigestSize {
			d.log().Log(LogLevelWarn, "digest msg field size invalid", "requestId", tr.RequestID, "size", len(raw))
			return &ClientError{Code: ResultFailParameter}
		}
		var dig Digest
		copy(dig[:], raw)
		tr.SetDigest(dig)
		return nil
	}
	if tr.HasDigest() {
		return nil // batch-sub: digest already carried.
	}
	key, ok := msg.Field(FieldKey)
	if !ok {
		return &ClientError{Code: ResultFailParameter}
	}
	var set []byte
	if msg.HasSet() {
		set, _ = msg.Field(FieldSet)
	}
	tr.SetDigest(computeDigest(set, key))
	return nil
}

// nPartitionsFor returns the partition count a namespace's key space is
// sharded into. Every namespace uses the same fixed count (spec §3
// "Partition"); NDevices is a queue-routing input (spec §4.2), not a
// partitioning one, and must not leak into PartitionID's modulus.
func (d *Dispatcher) nPartitionsFor(ns string) int {
	return defaultPartitionCount
}

// defaultPartitionCount is the fixed number of partitions per namespace
// (spec §3); the source uses a fixed 4096 partitions per namespace.
const defaultPartitionCount = 4096

// replyError reports a pre-namespace/pre-reservation failure (auth,
// namespace resolution, readiness gate) to whichever origin is waiting on
// this transaction. It is the same terminal-reply fan-out as dispatchError;
// every origin's completion sink must fire exactly once on any terminal
// path (spec §7), not just ClientCaller's.
func (d *Dispatcher) replyError(tr *Transaction, code ResultCode) {
	d.dispatchError(tr, code)
}

// singleRecordError is as_transaction_error: one reply, for every origin
// that can be replied to.
func (d *Dispatcher) singleRecordError(tr *Transaction, code ResultCode) {
	d.dispatchError(tr, code)
}

// multiRecordError is as_multi_rec_transaction_error: identical reply
// fan-out, kept as a separate name to mirror the source's asymmetric
// counters (spec §9 open question).
func (d *Dispatcher) multiRecordError(tr *Transaction, code ResultCode) {
	d.dispatchError(tr, code)
}

func (d *Dispatcher) dispatchError(tr *Transaction, code ResultCode) {
	tr.ResultCode = code
	switch c := tr.Caller.(type) {
	case ClientCaller:
		if c.Reply != nil {
			c.Reply(code, nil)
		}
	case InternalUDFCaller:
		if c.Callback != nil {
			c.Callback(c.UserData, code)
		}
	case ProxyCaller, ExpirationCaller:
		// No reply sink; ProxyCaller's sender gets nothing on this path
		// per spec, ExpirationCaller is always silent.
	}
}

// freeMessage marks tr's message buffer freed exactly once (spec §8
// invariant 1). Double-free is a programmer error.
func (d *Dispatcher) freeMessage(tr *Transaction) {
	if tr.freed {
		mustNotHappen("freeMessage: double free of message buffer, requestId=%s", tr.RequestID)
	}
	tr.freed = true
}
