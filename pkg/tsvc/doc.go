// Package tsvc implements a distributed key-value node's transaction
// service dispatcher: classification, authentication, deadline
// calculation, partition reservation, and executor dispatch for inbound
// protocol messages, plus the pool-of-queues plane that feeds it.
package tsvc
