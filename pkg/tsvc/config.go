package tsvc

import "time"

// MaxTransactionQueues is the fatal-at-startup ceiling from spec §4.2.
const MaxTransactionQueues = 1024

// NamespaceConfig carries the per-namespace queue-sizing inputs spec §3/§4.2
// need: device count and the first queue index assigned to this namespace.
type NamespaceConfig struct {
	Name       string
	NDevices   int // 0 means memory-only
	DevQOffset int
}

// config is the resolved, read-only-after-init configuration shared by
// Dispatcher and QueuePlane. It is never mutated after New*, matching
// spec §5 "configuration (read-only after init)".
type config struct {
	logger Logger

	maxTTL                  time.Duration
	allowInlineTransactions bool

	useQueuePerDevice           bool
	nTransactionQueues          int
	nTransactionThreadsPerQueue int
	namespaces                  []NamespaceConfig

	svcBenchmarksEnabled bool

	gateway      ReservationGateway
	security     SecurityProvider
	proxy        ProxyFabric
	replication  ReplicationHandler
	histogram    Histogram
	stats        Stats
}

func defaultConfig() *config {
	return &config{
		logger:                      NopLogger(),
		maxTTL:                      1500 * time.Millisecond,
		nTransactionQueues:          8,
		nTransactionThreadsPerQueue: 4,
		histogram:                   nopHistogram{},
		stats:                       nopStats{},
	}
}

// Opt configures a Dispatcher or QueuePlane, in the teacher's functional
// options style (kgo.Opt / opts ...Opt).
type Opt interface {
	apply(*config)
}

type configOpt func(*config)

func (f configOpt) apply(c *config) { f(c) }

// WithLogger sets the ambient Logger.
func WithLogger(l Logger) Opt {
	return configOpt(func(c *config) { c.logger = l })
}

// MaxTTL sets config.transaction_max_ns, the default deadline applied when
// a message carries no explicit TTL (spec §4.1 step 8, §8 invariant 5).
func MaxTTL(d time.Duration) Opt {
	return configOpt(func(c *config) { c.maxTTL = d })
}

// AllowInlineTransactions enables the inline-bypass path of
// QueuePlane.ProcessOrEnqueue (spec §4.2).
func AllowInlineTransactions(allow bool) Opt {
	return configOpt(func(c *config) { c.allowInlineTransactions = allow })
}

// UseQueuePerDevice switches the queue-sizing and routing mode (spec §4.2).
func UseQueuePerDevice(use bool) Opt {
	return configOpt(func(c *config) { c.useQueuePerDevice = use })
}

// NTransactionQueues sets the queue count used when UseQueuePerDevice is
// false.
func NTransactionQueues(n int) Opt {
	return configOpt(func(c *config) { c.nTransactionQueues = n })
}

// NTransactionThreadsPerQueue sets the worker count spawned per queue.
func NTransactionThreadsPerQueue(n int) Opt {
	return configOpt(func(c *config) { c.nTransactionThreadsPerQueue = n })
}

// Namespaces supplies the per-namespace device/offset inputs for
// queue-per-device sizing (spec §4.2).
func Namespaces(ns ...NamespaceConfig) Opt {
	return configOpt(func(c *config) { c.namespaces = ns })
}

// EnableServiceBenchmarks turns on the queue-wait histogram hook (spec §4.2
// Observability hook).
func EnableServiceBenchmarks(enabled bool) Opt {
	return configOpt(func(c *config) { c.svcBenchmarksEnabled = enabled })
}

// WithReservationGateway, WithSecurityProvider, WithProxyFabric,
// WithReplicationHandler, WithHistogram, and WithStats wire in the external
// collaborators from spec §2/§6.
func WithReservationGateway(g ReservationGateway) Opt {
	return configOpt(func(c *config) { c.gateway = g })
}

func WithSecurityProvider(s SecurityProvider) Opt {
	return configOpt(func(c *config) { c.security = s })
}

func WithProxyFabric(p ProxyFabric) Opt {
	return configOpt(func(c *config) { c.proxy = p })
}

func WithReplicationHandler(r ReplicationHandler) Opt {
	return configOpt(func(c *config) { c.replication = r })
}

func WithHistogram(h Histogram) Opt {
	return configOpt(func(c *config) { c.histogram = h })
}

func WithStats(s Stats) Opt {
	return configOpt(func(c *config) { c.stats = s })
}
